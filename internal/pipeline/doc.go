// Package pipeline drives one recording through diarization, identity
// resolution, transcription and insight generation.
//
// A job moves QUEUED -> PROCESSING -> COMPLETED or FAILED. Each milestone is
// committed to the database as it is reached, mirrored to Redis and
// broadcast to SSE subscribers. Work persisted before a failure is kept;
// reprocessing a recording starts a new job that first purges the earlier
// results.
//
// Two variants share the persistence helpers: Staged calls separate
// diarization, embedding, transcription and insight backends; SingleCall
// asks one multimodal backend for everything.
package pipeline

// Package transcription defines the speech-to-text collaborator and the
// alignment of its time-coded output onto diarized speaker turns.
//
// Backends:
//
//   - transcription/whisper: faster-whisper HTTP sidecar
//   - transcription/openai: OpenAI audio transcription API (or a compatible gateway)
package transcription

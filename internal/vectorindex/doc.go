// Package vectorindex is the similarity-searchable store of speaker
// embeddings.
//
// Vectors are unit-normalized on insert and compared by inner product
// (cosine similarity). Entries live in an append-only arena addressed by
// position; removing a speaker tombstones its positions and Rebuild
// compacts the arena. Every mutation writes a snapshot pair through
// storage.Storage so the index survives restarts:
//
//	<prefix>/speaker_embeddings.index   binary vectors
//	<prefix>/speaker_metadata.json      positions, identities, generation
package vectorindex

// Package diarization defines the "who spoke when" collaborator: a Provider
// that splits a recording into labelled speaker turns, an Embedder that
// turns one turn into a voice embedding, and pure post-processing helpers
// over the resulting segments.
//
// Labels returned by a Provider are local to one recording; durable speaker
// identities are resolved from embeddings elsewhere.
package diarization

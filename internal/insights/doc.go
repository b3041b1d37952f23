// Package insights turns transcripts into conversation and per-speaker
// analysis. Generation is delegated to a chat model; word counts, filler
// words and speaking pace are computed locally.
package insights

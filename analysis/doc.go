// Package analysis defines the single-call collaborator: one request carries
// a whole recording and the response holds diarized segments with text,
// per-label speaker metadata, and conversation and speaker insights.
//
// Parse validates raw model output before anything downstream trusts it.
package analysis

// Package api exposes recordings, jobs, speakers and the embedding index
// over HTTP under /api/v1.
package api

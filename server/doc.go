// Package server runs the Gin HTTP server behind a net/http middleware chain
// (recovery, request id, CORS, body limit, request logging) with h2c enabled.
//
// Built-in endpoints: /health, /ready and /version.
package server

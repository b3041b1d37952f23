// Package component defines the lifecycle contract for infrastructure pieces
// (database, redis, kafka, storage, HTTP server, workers) and a registry that
// starts them in registration order and stops them in reverse.
package component

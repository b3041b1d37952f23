// Package redis wraps go-redis with service logging and lifecycle
// management. It provides a JSON TypedStore for short-lived cached state
// (job progress) and a token-based Mutex for cross-process locking.
package redis

// Package database wraps GORM with connection retry, pool settings,
// transactions with panic recovery, auto-migration, and a GORM logger that
// writes through the service logger.
//
// The driver is chosen by Config.Driver: "sqlite" (default, file or
// ":memory:") or "postgres".
package database

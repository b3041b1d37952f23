// Package bootstrap runs a service through a uniform lifecycle: load and
// validate config, start infrastructure components, run configure callbacks
// that wire the domain layer, then either block until a shutdown signal
// (Run) or execute a finite task (RunTask), and finally stop everything in
// reverse order.
package bootstrap

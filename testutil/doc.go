// Package testutil starts real infrastructure components for package tests.
//
// Components run against in-process backends: SQLite ":memory:" for the
// database, miniredis for Redis and a temporary directory for storage.
// Every component is stopped through t.Cleanup.
//
//	func TestResolver(t *testing.T) {
//	    h := testutil.T(t)
//	    db := h.Database(store.Models()...)
//	    client, _ := h.Redis()
//	    ...
//	}
package testutil

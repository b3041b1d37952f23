// Package speaker resolves voices to durable speaker identities.
//
// The Resolver matches an embedding against the vector index and either
// attributes it to an existing speaker or creates a new one. It also owns
// every mutation that must keep the index and the database in step: merging
// duplicates, deleting identities and forgetting a recording before it is
// reprocessed. Those mutations are serialized by a Locker.
package speaker

// Package resilience holds the fault-tolerance helpers used around
// collaborators and infrastructure:
//   - Retry with exponential backoff, for connecting to databases and brokers
//   - CircuitBreaker, so a dead sidecar fails jobs fast instead of timing out each one
//   - Bulkhead, a bounded slot pool that caps concurrent pipeline jobs
//
// The pipeline itself never retries a job; a collaborator failure fails it.
package resilience

// Package worker dispatches processing jobs to a bounded pool of in-process
// workers, either directly or through a Kafka topic.
//
// In inline mode the API hands jobs straight to the Pool. In kafka mode the
// API publishes a JobEvent with KafkaDispatcher and every instance runs an
// Intake that consumes the topic and feeds its own Pool.
package worker

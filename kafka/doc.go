// Package kafka holds the shared Kafka configuration and connection
// helpers (TLS, SASL, compression) used by the producer and consumer
// subpackages, which wrap segmentio/kafka-go.
package kafka

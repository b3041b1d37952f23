package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// security is the TLS and SASL setup shared by the writer transport and the
// reader dialer. Both fields are nil when disabled.
type security struct {
	tls  *tls.Config
	sasl sasl.Mechanism
}

func newSecurity(cfg *Config) (security, error) {
	var sec security
	if cfg.EnableTLS {
		tc, err := tlsConfig(cfg)
		if err != nil {
			return sec, fmt.Errorf("kafka tls: %w", err)
		}
		sec.tls = tc
	}
	if cfg.EnableSASL {
		m, err := saslMechanism(cfg)
		if err != nil {
			return sec, fmt.Errorf("kafka sasl: %w", err)
		}
		sec.sasl = m
	}
	return sec, nil
}

// CreateTransport builds the transport the job producer writes through.
func CreateTransport(cfg *Config) (*kafka.Transport, error) {
	sec, err := newSecurity(cfg)
	if err != nil {
		return nil, err
	}
	return &kafka.Transport{
		DialTimeout: ParseDuration(cfg.DialTimeout),
		TLS:         sec.tls,
		SASL:        sec.sasl,
	}, nil
}

// CreateDialer builds the dialer the worker intake reads through.
func CreateDialer(cfg *Config) (*kafka.Dialer, error) {
	sec, err := newSecurity(cfg)
	if err != nil {
		return nil, err
	}
	return &kafka.Dialer{
		Timeout:       ParseDuration(cfg.DialTimeout),
		DualStack:     true,
		TLS:           sec.tls,
		SASLMechanism: sec.sasl,
	}, nil
}

func tlsConfig(cfg *Config) (*tls.Config, error) {
	tc := &tls.Config{
		InsecureSkipVerify: cfg.TLSSkipVerify, //nolint:gosec // opt-in for self-signed brokers
		MinVersion:         tls.VersionTLS12,
	}
	if cfg.TLSCAFile == "" {
		return tc, nil
	}
	pem, err := os.ReadFile(cfg.TLSCAFile)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates in %s", cfg.TLSCAFile)
	}
	tc.RootCAs = pool
	return tc, nil
}

func saslMechanism(cfg *Config) (sasl.Mechanism, error) {
	switch cfg.SASLMechanism {
	case "PLAIN":
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	}
	return nil, fmt.Errorf("unsupported mechanism %q", cfg.SASLMechanism)
}

var compressions = map[string]kafka.Compression{
	"none":   0,
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
}

// ResolveCompression maps a codec name to its kafka-go value. Unknown names
// fall back to snappy.
func ResolveCompression(name string) kafka.Compression {
	if c, ok := compressions[name]; ok {
		return c
	}
	return kafka.Snappy
}

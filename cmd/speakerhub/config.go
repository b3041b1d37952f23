package main

import (
	"fmt"

	"github.com/kbukum/speakerhub/analysis/remote"
	"github.com/kbukum/speakerhub/config"
	"github.com/kbukum/speakerhub/database"
	"github.com/kbukum/speakerhub/diarization/pyannote"
	"github.com/kbukum/speakerhub/internal/pipeline"
	"github.com/kbukum/speakerhub/internal/speaker"
	"github.com/kbukum/speakerhub/internal/vectorindex"
	"github.com/kbukum/speakerhub/internal/worker"
	"github.com/kbukum/speakerhub/kafka"
	llmopenai "github.com/kbukum/speakerhub/llm/openai"
	"github.com/kbukum/speakerhub/observability"
	"github.com/kbukum/speakerhub/provider"
	"github.com/kbukum/speakerhub/redis"
	"github.com/kbukum/speakerhub/server"
	"github.com/kbukum/speakerhub/storage"
	"github.com/kbukum/speakerhub/transcription/whisper"
	"github.com/kbukum/speakerhub/version"
)

// AppConfig is the full service configuration loaded from config.yml and
// the environment.
type AppConfig struct {
	config.ServiceConfig `mapstructure:",squash"`

	HTTP          server.Config        `mapstructure:"http"`
	Database      database.Config      `mapstructure:"database"`
	Redis         redis.Config         `mapstructure:"redis"`
	Kafka         kafka.Config         `mapstructure:"kafka"`
	Storage       storage.Config       `mapstructure:"storage"`
	Index         vectorindex.Config   `mapstructure:"index"`
	Resolver      speaker.Config       `mapstructure:"resolver"`
	Pipeline      pipeline.Config      `mapstructure:"pipeline"`
	Diarization   provider.Config      `mapstructure:"diarization"`
	Transcription provider.Config      `mapstructure:"transcription"`
	LLM           provider.Config      `mapstructure:"llm"`
	Analysis      provider.Config      `mapstructure:"analysis"`
	Dispatch      worker.Config        `mapstructure:"dispatch"`
	Observability observability.Config `mapstructure:"observability"`
}

// ApplyDefaults fills every section.
func (c *AppConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	if c.Version == "" {
		c.Version = version.Short()
	}
	c.ServiceConfig.ApplyDefaults()

	c.HTTP.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Kafka.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Index.ApplyDefaults()
	c.Resolver.ApplyDefaults()
	c.Pipeline.ApplyDefaults()
	c.Diarization.ApplyDefaults(pyannote.ProviderName, pyannote.DefaultURL)
	c.Transcription.ApplyDefaults(whisper.ProviderName, whisper.DefaultURL)
	c.LLM.ApplyDefaults(llmopenai.ProviderName, "")
	c.Analysis.ApplyDefaults(remote.ProviderName, remote.DefaultURL)
	c.Dispatch.ApplyDefaults()

	c.Observability.ServiceName = c.Name
	c.Observability.ServiceVersion = c.Version
	c.Observability.Environment = c.Environment
	c.Observability.ApplyDefaults()
}

// Validate checks every section the configured variant and dispatch mode
// depend on.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if !c.Database.Enabled {
		return fmt.Errorf("database.enabled must be true")
	}
	for _, sec := range []section{
		{"http", c.HTTP.Validate},
		{"database", c.Database.Validate},
		{"redis", c.Redis.Validate},
		{"kafka", c.Kafka.Validate},
		{"storage", c.Storage.Validate},
		{"index", c.Index.Validate},
		{"resolver", c.Resolver.Validate},
		{"pipeline", c.Pipeline.Validate},
		{"dispatch", c.Dispatch.Validate},
		{"observability", c.Observability.Validate},
	} {
		if err := sec.validate(); err != nil {
			return fmt.Errorf("%s: %w", sec.name, err)
		}
	}

	if c.Resolver.Lock == speaker.LockRedis && !c.Redis.Enabled {
		return fmt.Errorf("resolver.lock=redis requires redis.enabled")
	}
	if c.Dispatch.Mode == worker.ModeKafka && !c.Kafka.Enabled {
		return fmt.Errorf("dispatch.mode=kafka requires kafka.enabled")
	}

	collaborators := []section{
		{"diarization", c.Diarization.Validate},
		{"transcription", c.Transcription.Validate},
		{"llm", c.LLM.Validate},
	}
	if c.Pipeline.Variant == pipeline.VariantSingleCall {
		collaborators = []section{{"analysis", c.Analysis.Validate}}
	}
	for _, sec := range collaborators {
		if err := sec.validate(); err != nil {
			return fmt.Errorf("%s: %w", sec.name, err)
		}
	}
	return nil
}

type section struct {
	name     string
	validate func() error
}

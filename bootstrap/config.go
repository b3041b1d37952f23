package bootstrap

import "github.com/kbukum/speakerhub/config"

// Config is satisfied by any struct embedding config.ServiceConfig that
// also provides its own ApplyDefaults and Validate.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}

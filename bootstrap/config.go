package bootstrap

import (
	"github.com/kbukum/whisper-server/config"
)

// Config is the constraint for application configuration types. A struct
// embedding config.ServiceConfig gets these methods by promotion and only
// overrides the ones it extends.
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Server server.Config `yaml:"server" mapstructure:"server"`
//	}
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}

package app

import (
	"fmt"
	"slices"
	"time"

	"github.com/kbukum/whisper-server/config"
	"github.com/kbukum/whisper-server/engine"
	"github.com/kbukum/whisper-server/engine/openai"
	"github.com/kbukum/whisper-server/engine/stub"
	"github.com/kbukum/whisper-server/engine/whisper"
	"github.com/kbukum/whisper-server/normalize"
	"github.com/kbukum/whisper-server/observability"
	"github.com/kbukum/whisper-server/server"
	"github.com/kbukum/whisper-server/validation"
)

// ServiceName is the name config files and env files are resolved by.
const ServiceName = "whisper-server"

// Config is the whole service configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server    server.Config              `yaml:"server" mapstructure:"server"`
	Audio     AudioConfig                `yaml:"audio" mapstructure:"audio"`
	Engine    EngineConfig               `yaml:"engine" mapstructure:"engine"`
	Normalize normalize.Config           `yaml:"normalize" mapstructure:"normalize"`
	Scratch   ScratchConfig              `yaml:"scratch" mapstructure:"scratch"`
	Tracing   observability.TracerConfig `yaml:"tracing" mapstructure:"tracing"`
}

// AudioConfig bounds accepted uploads.
type AudioConfig struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb" validate:"gt=0"`
}

// EngineConfig selects the backend and sizes the engine cache.
type EngineConfig struct {
	DefaultModel string        `yaml:"default_model" mapstructure:"default_model" validate:"required"`
	CacheSize    int           `yaml:"cache_size" mapstructure:"cache_size" validate:"gt=0"`
	Eviction     string        `yaml:"eviction" mapstructure:"eviction" validate:"oneof=lru fifo"`
	Device       string        `yaml:"device" mapstructure:"device" validate:"oneof=auto cuda mps cpu"`
	LoadTimeout  time.Duration `yaml:"load_timeout" mapstructure:"load_timeout" validate:"gte=0"`
	QueueTimeout time.Duration `yaml:"queue_timeout" mapstructure:"queue_timeout" validate:"gte=0"`
	Preload      []string      `yaml:"preload" mapstructure:"preload"`

	// Models replaces the built-in identifier catalog when set.
	Models map[string]string `yaml:"models" mapstructure:"models"`

	// Backend names the entry of Backends that builds engines, or "auto".
	Backend  string                    `yaml:"backend" mapstructure:"backend" validate:"required"`
	Backends map[string]map[string]any `yaml:"backends" mapstructure:"backends"`
}

// ScratchConfig locates temporary audio files. Empty means the OS temp dir.
type ScratchConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

var backends = []string{BackendAuto, whisper.ProviderName, openai.ProviderName, stub.ProviderName}

// Defaults returns the dotted-key defaults handed to config.LoadConfig, so
// every key can also be overridden from the environment.
func Defaults() map[string]any {
	return map[string]any{
		"name":                        ServiceName,
		"environment":                 "development",
		"logging.level":               "info",
		"logging.output":              "stdout",
		"server.host":                 "127.0.0.1",
		"server.port":                 8089,
		"server.max_body_size":        "32MB",
		"server.allowed_hosts":        []string{"*"},
		"server.cors.allowed_origins": []string{"*"},
		"audio.max_file_size_mb":      10,
		"engine.default_model":        "whisper-1",
		"engine.cache_size":           4,
		"engine.eviction":             string(engine.PolicyLRU),
		"engine.device":               string(engine.DeviceAuto),
		"engine.load_timeout":         "10m",
		"engine.queue_timeout":        "30s",
		"engine.backend":              stub.ProviderName,
		"normalize.kind":              normalize.KindAuto,
		"scratch.dir":                 "",
		"tracing.enabled":             false,
	}
}

// ApplyDefaults fills unset fields of every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = ServiceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()

	if c.Audio.MaxFileSizeMB == 0 {
		c.Audio.MaxFileSizeMB = 10
	}
	if c.Engine.DefaultModel == "" {
		c.Engine.DefaultModel = "whisper-1"
	}
	if c.Engine.CacheSize == 0 {
		c.Engine.CacheSize = 4
	}
	if c.Engine.Eviction == "" {
		c.Engine.Eviction = string(engine.PolicyLRU)
	}
	if c.Engine.Device == "" {
		c.Engine.Device = string(engine.DeviceAuto)
	}
	if c.Engine.Backend == "" {
		c.Engine.Backend = stub.ProviderName
	}
	if c.Normalize.Kind == "" {
		c.Normalize.Kind = normalize.KindAuto
	}

	c.Tracing.ServiceName = c.Name
	c.Tracing.ServiceVersion = c.Version
	c.Tracing.Environment = c.Environment
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	if !slices.Contains(backends, c.Engine.Backend) {
		return fmt.Errorf("engine.backend must be one of %v (got: %s)", backends, c.Engine.Backend)
	}

	catalog, err := c.Catalog()
	if err != nil {
		return fmt.Errorf("engine.models: %w", err)
	}
	if !catalog.Supported(c.Engine.DefaultModel) {
		return fmt.Errorf("engine.default_model %q is not in the catalog %v", c.Engine.DefaultModel, catalog.IDs())
	}
	for _, id := range c.Engine.Preload {
		if !catalog.Supported(id) {
			return fmt.Errorf("engine.preload: %q is not in the catalog %v", id, catalog.IDs())
		}
	}
	return nil
}

// Catalog returns the configured identifier catalog, or the built-in one.
func (c *Config) Catalog() (*engine.Catalog, error) {
	if len(c.Engine.Models) == 0 {
		return engine.DefaultCatalog(), nil
	}
	return engine.NewCatalog(c.Engine.Models)
}

// CacheOptions converts the engine section for engine.NewCache.
func (c *Config) CacheOptions() engine.CacheOptions {
	return engine.CacheOptions{
		Capacity:     c.Engine.CacheSize,
		Policy:       engine.Policy(c.Engine.Eviction),
		Device:       engine.ResolveDevice(c.Engine.Device),
		LoadTimeout:  c.Engine.LoadTimeout,
		QueueTimeout: c.Engine.QueueTimeout,
		Preload:      c.Engine.Preload,
	}
}

// Package config loads service configuration with Viper.
//
// Values come from registered defaults, a config.yml found next to the
// service's cmd directory, an optional .env file, and the process
// environment, in increasing order of precedence.
//
// # Usage
//
//	var cfg app.Config
//	err := config.LoadConfig("whisper-server", &cfg,
//	    config.WithDefaults(app.Defaults()),
//	)
//
// Environment variables use the upper-cased dotted key with underscores
// (SERVER_PORT, ENGINE_CACHE_SIZE).
package config

// Command whisper-server serves Whisper transcription over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/kbukum/whisper-server/app"
	"github.com/kbukum/whisper-server/config"
	"github.com/kbukum/whisper-server/version"
)

func main() {
	configFile := flag.String("config", "", "path to config.yml (searched in ./cmd/whisper-server, ./config and . when empty)")
	envFile := flag.String("env", "", "path to a .env file")
	showVersion := flag.Bool("version", false, "print build information and exit")
	flag.Parse()

	if *showVersion {
		v := version.Get()
		fmt.Printf("%s %s (%s, %s)\n", app.ServiceName, v.Version, v.GitCommit, v.GoVersion)
		return
	}

	if err := run(*configFile, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", app.ServiceName, err)
		os.Exit(1)
	}
}

func run(configFile, envFile string) error {
	var cfg app.Config
	opts := []config.LoaderOption{config.WithDefaults(app.Defaults())}
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}
	if err := config.LoadConfig(app.ServiceName, &cfg, opts...); err != nil {
		return err
	}
	if cfg.Version == "" {
		cfg.Version = version.Version
	}

	ctx := context.Background()
	a, _, err := app.New(ctx, &cfg, afero.NewOsFs())
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

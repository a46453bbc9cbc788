package server

import (
	"flag"
	"fmt"
	"io"

	"avb/application/logging"
	"avb/domain/app"
	"avb/infrastructure/PAL/configuration"
	serverConfiguration "avb/infrastructure/PAL/configuration/server"

	"github.com/caarlos0/env/v11"
)

// Settings is everything the server process reads at start-up.
type Settings struct {
	Configuration        serverConfiguration.Configuration
	ConfigurationManager serverConfiguration.ConfigurationManager
	UIMode               app.UIMode
}

type environment struct {
	UI string `env:"AVB_UI" envDefault:"tui"`
}

// LoadSettings reads environ (the process environment when nil), the
// configuration file, creating it when needed, and the command line override.
func LoadSettings(args []string, environ map[string]string, logger logging.Logger) (Settings, error) {
	var envSettings environment
	if err := env.ParseWithOptions(&envSettings, env.Options{Environment: environ}); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&envSettings.UI, "ui", envSettings.UI, "tui or cli")
	override, err := serverConfiguration.ParseOverride(fs, args)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid server arguments: %w", err)
	}
	uiMode, err := app.ParseUIMode(envSettings.UI)
	if err != nil {
		return Settings{}, err
	}

	var resolver configuration.Resolver = configuration.NewUserConfigResolver(serverConfiguration.FileName)
	if override.ConfigPath != "" {
		resolver = configuration.StaticResolver(override.ConfigPath)
	}
	manager, err := serverConfiguration.NewManager(resolver, logger)
	if err != nil {
		return Settings{}, err
	}
	conf, err := manager.Configuration()
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read server configuration: %w", err)
	}

	if override.Partial() {
		logger.Printf("ignoring --ip, --port and --max-players: all three must be given together")
	}
	if err := override.Apply(conf); err != nil {
		return Settings{}, err
	}
	return Settings{
		Configuration:        *conf,
		ConfigurationManager: manager,
		UIMode:               uiMode,
	}, nil
}

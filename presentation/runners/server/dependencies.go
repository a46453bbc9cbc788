package server

import (
	"avb/application/logging"
	"avb/application/session/events"
	sessionServer "avb/application/session/server"
	serverConfiguration "avb/infrastructure/PAL/configuration/server"
	"avb/infrastructure/network/udp"
)

type AppDependencies interface {
	Configuration() serverConfiguration.Configuration
	ConfigurationManager() serverConfiguration.ConfigurationManager
	Manager() *sessionServer.Manager
	Bus() *events.Bus
	Logger() logging.Logger
}

type Dependencies struct {
	configuration        serverConfiguration.Configuration
	configurationManager serverConfiguration.ConfigurationManager
	manager              *sessionServer.Manager
	bus                  *events.Bus
	logger               logging.Logger
}

// NewDependencies wires the server over the UDP listener.
func NewDependencies(
	configuration serverConfiguration.Configuration,
	configurationManager serverConfiguration.ConfigurationManager,
	logger logging.Logger,
) AppDependencies {
	listener := udp.NewListener(udp.DefaultSettings(), logger)
	return NewDependenciesWithListener(configuration, configurationManager, listener, logger)
}

func NewDependenciesWithListener(
	configuration serverConfiguration.Configuration,
	configurationManager serverConfiguration.ConfigurationManager,
	listener sessionServer.Listener,
	logger logging.Logger,
) AppDependencies {
	bus := events.NewBus(logger)
	return &Dependencies{
		configuration:        configuration,
		configurationManager: configurationManager,
		manager:              sessionServer.NewManager(listener, bus, logger),
		bus:                  bus,
		logger:               logger,
	}
}

func (d *Dependencies) Configuration() serverConfiguration.Configuration {
	return d.configuration
}

func (d *Dependencies) ConfigurationManager() serverConfiguration.ConfigurationManager {
	return d.configurationManager
}

func (d *Dependencies) Manager() *sessionServer.Manager {
	return d.manager
}

func (d *Dependencies) Bus() *events.Bus {
	return d.bus
}

func (d *Dependencies) Logger() logging.Logger {
	return d.logger
}

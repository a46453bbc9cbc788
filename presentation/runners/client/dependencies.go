package client

import (
	"avb/application/appstate"
	"avb/application/logging"
	sessionClient "avb/application/session/client"
	"avb/application/session/events"
	clientConfiguration "avb/infrastructure/PAL/configuration/client"
	"avb/infrastructure/network/udp"
)

type AppDependencies interface {
	Configuration() clientConfiguration.Configuration
	Manager() *sessionClient.Manager
	Machine() *appstate.Machine
	Entities() *appstate.Entities
	Bus() *events.Bus
	Logger() logging.Logger
}

type Dependencies struct {
	conf     clientConfiguration.Configuration
	manager  *sessionClient.Manager
	machine  *appstate.Machine
	entities *appstate.Entities
	bus      *events.Bus
	logger   logging.Logger
}

// NewDependencies wires the client over the UDP transport.
func NewDependencies(conf clientConfiguration.Configuration, logger logging.Logger) AppDependencies {
	transport := udp.NewTransport(udp.DefaultSettings(), udp.DefaultUDPDialer{}, logger)
	return NewDependenciesWithTransport(conf, transport, logger)
}

func NewDependenciesWithTransport(
	conf clientConfiguration.Configuration,
	transport sessionClient.Transport,
	logger logging.Logger,
) AppDependencies {
	entities := appstate.NewEntities()
	machine := appstate.NewMachine(entities, logger)
	bus := events.NewBus(logger)
	return &Dependencies{
		conf:     conf,
		manager:  sessionClient.NewManager(transport, machine, bus, logger),
		machine:  machine,
		entities: entities,
		bus:      bus,
		logger:   logger,
	}
}

func (d *Dependencies) Configuration() clientConfiguration.Configuration {
	return d.conf
}

func (d *Dependencies) Manager() *sessionClient.Manager {
	return d.manager
}

func (d *Dependencies) Machine() *appstate.Machine {
	return d.machine
}

func (d *Dependencies) Entities() *appstate.Entities {
	return d.entities
}

func (d *Dependencies) Bus() *events.Bus {
	return d.bus
}

func (d *Dependencies) Logger() logging.Logger {
	return d.logger
}

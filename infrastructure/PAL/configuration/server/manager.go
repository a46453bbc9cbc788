package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"avb/application/logging"
	"avb/infrastructure/PAL/configuration"
)

const FileName = "server_configuration.yaml"

type ConfigurationManager interface {
	// Configuration reads the file, replacing a missing or unusable one with defaults.
	Configuration() (*Configuration, error)
	// Reload re-reads the file and reports errors instead of repairing it.
	Reload() (*Configuration, error)
	Path() string
}

type statFunc func(name string) (os.FileInfo, error)

type Manager struct {
	path   string
	reader Reader
	writer Writer
	stat   statFunc
	logger logging.Logger
}

func NewManager(resolver configuration.Resolver, logger logging.Logger) (*Manager, error) {
	path, err := resolver.Resolve()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve server configuration path: %w", err)
	}
	return NewManagerWithReader(path, NewTTLReader(newFileReader(path), 15*time.Minute), logger), nil
}

func NewManagerWithReader(path string, reader Reader, logger logging.Logger) *Manager {
	return &Manager{
		path:   path,
		reader: reader,
		writer: newFileWriter(path),
		stat:   os.Stat,
		logger: logger,
	}
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Configuration() (*Configuration, error) {
	if _, err := m.stat(m.path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		m.logger.Printf("no server configuration at %s, writing defaults", m.path)
		return m.writeDefault()
	}

	conf, err := m.reader.read()
	if err != nil {
		m.logger.Printf("warning: %v; replacing it with defaults", err)
		return m.writeDefault()
	}
	return conf, nil
}

func (m *Manager) Reload() (*Configuration, error) {
	if ttl, ok := m.reader.(*TTLReader); ok {
		ttl.InvalidateCache()
	}
	return m.reader.read()
}

func (m *Manager) writeDefault() (*Configuration, error) {
	conf := NewDefaultConfiguration()
	if err := m.writer.Write(*conf); err != nil {
		return nil, fmt.Errorf("could not write default configuration: %w", err)
	}
	if ttl, ok := m.reader.(*TTLReader); ok {
		ttl.InvalidateCache()
	}
	return conf, nil
}

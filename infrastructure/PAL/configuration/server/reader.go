package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Reader interface {
	read() (*Configuration, error)
}

type fileReader struct {
	path string
}

func newFileReader(path string) *fileReader {
	return &fileReader{path: path}
}

func (r *fileReader) read() (*Configuration, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("configuration file (%s) is unreadable: %w", r.path, err)
	}
	var configuration Configuration
	if err := yaml.Unmarshal(data, &configuration); err != nil {
		return nil, fmt.Errorf("configuration file (%s) is invalid: %w", r.path, err)
	}
	if err := configuration.Validate(); err != nil {
		return nil, fmt.Errorf("configuration file (%s): %w", r.path, err)
	}
	return &configuration, nil
}

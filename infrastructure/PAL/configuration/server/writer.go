package server

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Writer interface {
	Write(configuration Configuration) error
}

type fileWriter struct {
	path string
}

func newFileWriter(path string) *fileWriter {
	return &fileWriter{path: path}
}

// Write replaces the file atomically so watchers never see a partial document.
func (w *fileWriter) Write(configuration Configuration) error {
	content, err := yaml.Marshal(configuration)
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".server_configuration-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), w.path)
}

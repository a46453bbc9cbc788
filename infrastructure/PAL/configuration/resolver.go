package configuration

import (
	"fmt"
	"os"
	"path/filepath"

	"avb/domain/app"
)

// Resolver resolves a configuration file path.
type Resolver interface {
	Resolve() (string, error)
}

// UserConfigResolver places a named file in the per-user configuration
// directory of the game.
type UserConfigResolver struct {
	name       string
	userConfig func() (string, error)
}

func NewUserConfigResolver(name string) Resolver {
	return &UserConfigResolver{name: name, userConfig: os.UserConfigDir}
}

func (r *UserConfigResolver) Resolve() (string, error) {
	dir, err := r.userConfig()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, app.DirName, r.name), nil
}

// StaticResolver always resolves to the same path, e.g. one given on the command line.
type StaticResolver string

func (s StaticResolver) Resolve() (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty configuration path")
	}
	return string(s), nil
}

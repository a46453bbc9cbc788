package configuration

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestUserConfigResolver(t *testing.T) {
	r := &UserConfigResolver{name: "server_configuration.yaml", userConfig: func() (string, error) {
		return "/home/player/.config", nil
	}}
	got, err := r.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/home/player/.config", "avb", "server_configuration.yaml"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestUserConfigResolver_PropagatesError(t *testing.T) {
	r := &UserConfigResolver{name: "x", userConfig: func() (string, error) {
		return "", errors.New("$HOME is not defined")
	}}
	if _, err := r.Resolve(); err == nil {
		t.Fatal("expected error")
	}
}

func TestStaticResolver(t *testing.T) {
	if got, err := StaticResolver("/tmp/a.yaml").Resolve(); err != nil || got != "/tmp/a.yaml" {
		t.Fatalf("got %q %v", got, err)
	}
	if _, err := StaticResolver("").Resolve(); err == nil {
		t.Fatal("expected error for empty path")
	}
}

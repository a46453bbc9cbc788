package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"avb/domain/app"
)

func TestLoadSettings(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantAddress string
		wantPlayers uint32
		wantLog     string
	}{
		{
			name:        "defaults",
			wantAddress: "127.0.0.1:16565",
			wantPlayers: 4,
			wantLog:     "writing defaults",
		},
		{
			name:        "complete override",
			args:        []string{"--ip", "0.0.0.0", "--port", "17000", "--max-players", "16"},
			wantAddress: "0.0.0.0:17000",
			wantPlayers: 16,
		},
		{
			name:        "partial override is ignored",
			args:        []string{"--ip", "0.0.0.0"},
			wantAddress: "127.0.0.1:16565",
			wantPlayers: 4,
			wantLog:     "all three must be given together",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "server.yaml")
			logger := &recordingLogger{}
			settings, err := LoadSettings(append([]string{"--config", path}, tt.args...), map[string]string{}, logger)
			if err != nil {
				t.Fatalf("LoadSettings: %v", err)
			}
			conf, manager := settings.Configuration, settings.ConfigurationManager
			if conf.Address != tt.wantAddress || conf.MaxPlayers != tt.wantPlayers {
				t.Fatalf("got %s with %d players, want %s with %d", conf.Address, conf.MaxPlayers, tt.wantAddress, tt.wantPlayers)
			}
			if manager.Path() != path {
				t.Fatalf("Path = %q, want %q", manager.Path(), path)
			}
			if tt.wantLog != "" && !logger.contains(tt.wantLog) {
				t.Fatalf("missing log %q in %q", tt.wantLog, logger.lines)
			}
			if _, err := os.Stat(path); err != nil {
				t.Fatalf("configuration file was not written: %v", err)
			}
		})
	}
}

func TestLoadSettings_OverrideDoesNotRewriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	args := []string{"--config", path, "--ip", "10.0.0.1", "--port", "1", "--max-players", "2"}
	if _, err := LoadSettings(args, map[string]string{}, &recordingLogger{}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "10.0.0.1") {
		t.Fatalf("override leaked into the file:\n%s", data)
	}
}

func TestLoadSettings_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	tests := []struct {
		name    string
		args    []string
		environ map[string]string
	}{
		{name: "unknown flag", args: []string{"--players", "3"}},
		{name: "bad override ip", args: []string{"--config", path, "--ip", "nope", "--port", "1", "--max-players", "2"}},
		{name: "bad override port", args: []string{"--config", path, "--ip", "10.0.0.1", "--port", "70000", "--max-players", "2"}},
		{name: "unknown ui", args: []string{"--config", path}, environ: map[string]string{"AVB_UI": "gui"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadSettings(tt.args, tt.environ, &recordingLogger{}); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadSettings_UIMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	tests := []struct {
		name    string
		args    []string
		environ map[string]string
		want    app.UIMode
	}{
		{name: "default", want: app.TUI},
		{name: "environment", environ: map[string]string{"AVB_UI": "cli"}, want: app.CLI},
		{name: "flag wins", args: []string{"--ui", "tui"}, environ: map[string]string{"AVB_UI": "cli"}, want: app.TUI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			environ := tt.environ
			if environ == nil {
				environ = map[string]string{}
			}
			settings, err := LoadSettings(append([]string{"--config", path}, tt.args...), environ, &recordingLogger{})
			if err != nil {
				t.Fatal(err)
			}
			if settings.UIMode != tt.want {
				t.Fatalf("UIMode = %v, want %v", settings.UIMode, tt.want)
			}
		})
	}
}

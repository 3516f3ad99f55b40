package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	falseVal := false

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				Mode:         "file",
				File:         "/data/in.txt",
				PollInterval: "2s",
				Window:       20,
				Follow:       &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Mode:         "file",
				File:         "/data/in.txt",
				PollInterval: 2 * time.Second,
				Window:       20,
				Follow:       true,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Host: "10.0.0.5",
				Port: 4000,
			},
			changed: map[string]bool{"host": true},
			initial: Config{Host: "127.0.0.1"},
			expected: Config{
				Host: "127.0.0.1",
				Port: 4000,
			},
		},
		{
			name: "explicit false overrides true",
			fileConfig: FileConfig{
				Reconnect: &falseVal,
			},
			changed:  map[string]bool{},
			initial:  Config{Reconnect: true},
			expected: Config{Reconnect: false},
		},
		{
			name: "zero values keep defaults",
			fileConfig: FileConfig{
				Window:       0,
				OverflowRate: 0,
			},
			changed:  map[string]bool{},
			initial:  Config{Window: 10, OverflowRate: 100},
			expected: Config{Window: 10, OverflowRate: 100},
		},
		{
			name: "returns error for invalid duration",
			fileConfig: FileConfig{
				DialTimeout: "soon",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyFileConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyFileConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("config = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	tomlContent := `
mode = "net"
host = "192.168.1.20"
port = 4000
window = 32
overflow_rate = 50
dial_timeout = "3s"
reconnect = true
listen = ":9090"
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.Host != "192.168.1.20" {
		t.Errorf("Host = %v, want 192.168.1.20", fc.Host)
	}
	if fc.Port != 4000 {
		t.Errorf("Port = %v, want 4000", fc.Port)
	}
	if fc.Window != 32 {
		t.Errorf("Window = %v, want 32", fc.Window)
	}
	if fc.DialTimeout != "3s" {
		t.Errorf("DialTimeout = %v, want 3s", fc.DialTimeout)
	}
	if fc.Reconnect == nil || !*fc.Reconnect {
		t.Errorf("Reconnect = %v, want true", fc.Reconnect)
	}
	if fc.Listen != ":9090" {
		t.Errorf("Listen = %v, want :9090", fc.Listen)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	if _, err := LoadFileConfig("/nonexistent/path/config.toml"); err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.toml")
	if err := os.WriteFile(configPath, []byte("window = \nnot toml at all"), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}
	if _, err := LoadFileConfig(configPath); err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if path != "" && !strings.Contains(path, ".rankflow") {
		t.Errorf("DefaultConfigPath() = %v, should contain .rankflow", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existing := filepath.Join(tmpDir, "exists.txt")
	if err := os.WriteFile(existing, []byte("1 2 3\n"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !FileExists(existing) {
		t.Error("FileExists() = false, want true for existing file")
	}
	if FileExists(filepath.Join(tmpDir, "missing.txt")) {
		t.Error("FileExists() = true, want false for missing file")
	}
}

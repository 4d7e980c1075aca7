// internal/config/config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	validConfigPath := filepath.Join(tempDir, "config.yaml")
	validConfig := `
connection:
  address: "127.0.0.1:9191"
  framing: "netstring"

codec:
  encoding: "json"

tasking:
  model: "cooperative"
  handlers_quota: 4

logging:
  level: "debug"
  format: "json"
`
	if err := os.WriteFile(validConfigPath, []byte(validConfig), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	t.Run("ValidConfig", func(t *testing.T) {
		cfg, err := LoadConfig(validConfigPath)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Connection.Address != "127.0.0.1:9191" {
			t.Errorf("Connection.Address = %v, want %v", cfg.Connection.Address, "127.0.0.1:9191")
		}
		if cfg.Connection.Framing != "netstring" {
			t.Errorf("Connection.Framing = %v, want %v", cfg.Connection.Framing, "netstring")
		}
		if cfg.Tasking.Model != "cooperative" {
			t.Errorf("Tasking.Model = %v, want %v", cfg.Tasking.Model, "cooperative")
		}
		if cfg.Tasking.HandlersQuota != 4 {
			t.Errorf("Tasking.HandlersQuota = %v, want %v", cfg.Tasking.HandlersQuota, 4)
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("Logging.Level = %v, want %v", cfg.Logging.Level, "debug")
		}
	})

	t.Run("DefaultValues", func(t *testing.T) {
		defaultConfigPath := filepath.Join(tempDir, "default.yaml")
		defaultConfig := `
connection:
  address: "127.0.0.1:9191"
`
		if err := os.WriteFile(defaultConfigPath, []byte(defaultConfig), 0644); err != nil {
			t.Fatalf("Failed to write default config: %v", err)
		}
		cfg, err := LoadConfig(defaultConfigPath)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Connection.Framing != "rfc7464" {
			t.Errorf("Default Connection.Framing = %v, want %v", cfg.Connection.Framing, "rfc7464")
		}
		if cfg.Codec.Encoding != "json" {
			t.Errorf("Default Codec.Encoding = %v, want %v", cfg.Codec.Encoding, "json")
		}
		if cfg.Tasking.Model != "threads" {
			t.Errorf("Default Tasking.Model = %v, want %v", cfg.Tasking.Model, "threads")
		}
		if cfg.Tasking.RequestTimeoutSeconds != 30 {
			t.Errorf("Default Tasking.RequestTimeoutSeconds = %v, want %v", cfg.Tasking.RequestTimeoutSeconds, 30)
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("Default Logging.Level = %v, want %v", cfg.Logging.Level, "info")
		}
	})

	t.Run("InvalidFraming", func(t *testing.T) {
		invalidPath := filepath.Join(tempDir, "invalid_framing.yaml")
		invalidConfig := `
connection:
  address: "127.0.0.1:9191"
  framing: "carrier-pigeon"
`
		if err := os.WriteFile(invalidPath, []byte(invalidConfig), 0644); err != nil {
			t.Fatalf("Failed to write invalid config: %v", err)
		}
		if _, err := LoadConfig(invalidPath); err == nil {
			t.Error("LoadConfig() with unrecognized framing should return error")
		}
	})

	t.Run("BSONRequiresBSONFraming", func(t *testing.T) {
		invalidPath := filepath.Join(tempDir, "invalid_bson.yaml")
		invalidConfig := `
connection:
  address: "127.0.0.1:9191"
  framing: "netstring"

codec:
  encoding: "bson"
`
		if err := os.WriteFile(invalidPath, []byte(invalidConfig), 0644); err != nil {
			t.Fatalf("Failed to write invalid config: %v", err)
		}
		if _, err := LoadConfig(invalidPath); err == nil {
			t.Error("LoadConfig() with bson codec over non-bson framing should return error")
		}
	})

	t.Run("NonexistentFile", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(tempDir, "nonexistent.yaml"))
		if err == nil {
			t.Error("LoadConfig() with nonexistent file should return error")
		}
	})

	t.Run("EnvVarOverrides", func(t *testing.T) {
		os.Setenv("BSONRPC_ADDRESS", "0.0.0.0:7000")
		os.Setenv("BSONRPC_HANDLERS_QUOTA", "9")
		defer func() {
			os.Unsetenv("BSONRPC_ADDRESS")
			os.Unsetenv("BSONRPC_HANDLERS_QUOTA")
		}()

		cfg, err := LoadConfig(validConfigPath)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Connection.Address != "0.0.0.0:7000" {
			t.Errorf("Connection.Address should be overridden, got %v, want %v", cfg.Connection.Address, "0.0.0.0:7000")
		}
		if cfg.Tasking.HandlersQuota != 9 {
			t.Errorf("Tasking.HandlersQuota should be overridden, got %v, want %v", cfg.Tasking.HandlersQuota, 9)
		}
	})
}

func TestExpandPath(t *testing.T) {
	homePath := expandPath("~/test/path")
	homeDir, _ := os.UserHomeDir()
	expectedPath := filepath.Join(homeDir, "test/path")
	if homePath != expectedPath {
		t.Errorf("expandPath('~/test/path') = %v, want %v", homePath, expectedPath)
	}

	normalPath := "/tmp/test/path"
	if got := expandPath(normalPath); got != normalPath {
		t.Errorf("expandPath('%s') = %v, want %v", normalPath, got, normalPath)
	}
}

func TestParseInt(t *testing.T) {
	testCases := []struct {
		input     string
		expected  int
		expectErr bool
	}{
		{"123", 123, false},
		{"0", 0, false},
		{"-123", -123, false},
		{"123abc", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tc := range testCases {
		result, err := parseInt(tc.input)
		if (err != nil) != tc.expectErr {
			t.Errorf("parseInt(%q) error = %v, want error = %v", tc.input, err != nil, tc.expectErr)
		}
		if !tc.expectErr && result != tc.expected {
			t.Errorf("parseInt(%q) = %v, want %v", tc.input, result, tc.expected)
		}
	}
}

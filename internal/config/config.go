// Package config loads the YAML-driven configuration for a bsonrpc
// endpoint: which framing and codec to speak on the wire, which tasking
// model and quotas to run handlers under, and where to send log output.
// file: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/dkoosis/bsonrpc/internal/logging"
	"github.com/dkoosis/bsonrpc/pkg/util/stringutil"
)

var logger = logging.GetLogger("config")

// Config is the root configuration document for a bsonrpc endpoint
// process.
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Codec      CodecConfig      `yaml:"codec"`
	Tasking    TaskingConfig    `yaml:"tasking"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ConnectionConfig selects the transport address and wire framing.
type ConnectionConfig struct {
	Address string `yaml:"address"`
	// Framing is one of "rfc7464", "netstring", "frameless", "bson".
	Framing string `yaml:"framing"`
}

// CodecConfig selects the wire encoding.
type CodecConfig struct {
	// Encoding is one of "json", "bson".
	Encoding          string `yaml:"encoding"`
	MaxBSONFrameBytes int    `yaml:"max_bson_frame_bytes"`
}

// TaskingConfig selects the concurrency model and its quotas.
type TaskingConfig struct {
	// Model is one of "threads", "cooperative".
	Model                 string `yaml:"model"`
	HandlersQuota         int    `yaml:"handlers_quota"`
	BatchesQuota          int    `yaml:"batches_quota"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// LoggingConfig selects the default logger's level, format and
// destination.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// New returns a Config populated with sensible defaults, usable without
// any file on disk.
func New() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Address: ":9090",
			Framing: "rfc7464",
		},
		Codec: CodecConfig{
			Encoding:          "json",
			MaxBSONFrameBytes: 16 * 1024 * 1024,
		},
		Tasking: TaskingConfig{
			Model:                 "threads",
			HandlersQuota:         0,
			BatchesQuota:          0,
			RequestTimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
	}
}

// LoadConfig reads a YAML config file at path, applies defaults for any
// field the file leaves zero, overlays BSONRPC_* environment variables,
// and validates the result.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %s", path)
	}

	cfg := New()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", path)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	if cfg.Logging.File != "" {
		cfg.Logging.File = expandPath(cfg.Logging.File)
	}
	return cfg, nil
}

// applyDefaults overlays defaults onto every zero-valued field cfg's YAML
// file left unset. String fields use stringutil.CoalesceString so a blank
// file value and an actually-absent value are treated alike.
func applyDefaults(cfg *Config) {
	defaults := New()
	cfg.Connection.Address = stringutil.CoalesceString(cfg.Connection.Address, defaults.Connection.Address)
	cfg.Connection.Framing = stringutil.CoalesceString(cfg.Connection.Framing, defaults.Connection.Framing)
	cfg.Codec.Encoding = stringutil.CoalesceString(cfg.Codec.Encoding, defaults.Codec.Encoding)
	if cfg.Codec.MaxBSONFrameBytes == 0 {
		cfg.Codec.MaxBSONFrameBytes = defaults.Codec.MaxBSONFrameBytes
	}
	cfg.Tasking.Model = stringutil.CoalesceString(cfg.Tasking.Model, defaults.Tasking.Model)
	if cfg.Tasking.RequestTimeoutSeconds == 0 {
		cfg.Tasking.RequestTimeoutSeconds = defaults.Tasking.RequestTimeoutSeconds
	}
	cfg.Logging.Level = stringutil.CoalesceString(cfg.Logging.Level, defaults.Logging.Level)
	cfg.Logging.Format = stringutil.CoalesceString(cfg.Logging.Format, defaults.Logging.Format)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BSONRPC_ADDRESS"); v != "" {
		cfg.Connection.Address = v
	}
	if v := os.Getenv("BSONRPC_FRAMING"); v != "" {
		cfg.Connection.Framing = v
	}
	if v := os.Getenv("BSONRPC_HANDLERS_QUOTA"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Tasking.HandlersQuota = n
		} else {
			logger.Warn("Ignoring unparseable BSONRPC_HANDLERS_QUOTA.", "value", v)
		}
	}
}

var validFramings = map[string]bool{"rfc7464": true, "netstring": true, "frameless": true, "bson": true}
var validEncodings = map[string]bool{"json": true, "bson": true}
var validModels = map[string]bool{"threads": true, "cooperative": true}

func validate(cfg *Config) error {
	if cfg.Connection.Address == "" {
		return errors.New("config: connection.address is required")
	}
	if !validFramings[cfg.Connection.Framing] {
		return errors.Newf("config: unrecognized connection.framing %q", cfg.Connection.Framing)
	}
	if !validEncodings[cfg.Codec.Encoding] {
		return errors.Newf("config: unrecognized codec.encoding %q", cfg.Codec.Encoding)
	}
	if !validModels[cfg.Tasking.Model] {
		return errors.Newf("config: unrecognized tasking.model %q", cfg.Tasking.Model)
	}
	if cfg.Codec.Encoding == "bson" && cfg.Connection.Framing != "bson" {
		return errors.New("config: codec.encoding \"bson\" requires connection.framing \"bson\"")
	}
	return nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		logger.Warn("Could not resolve home directory for path expansion.", "path", path, "error", err)
		return path
	}
	return filepath.Join(home, path[1:])
}

// parseInt parses s as a base-10 int via strconv.Atoi; an empty or
// non-numeric string (including trailing garbage such as "123abc") is an
// error.
func parseInt(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("config: empty integer value")
	}
	return strconv.Atoi(s)
}

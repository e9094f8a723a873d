// Package config loads logger settings from a YAML or JSON file and applies
// runtime-adjustable settings to a live logger when the file changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/neehar-mavuduru/swaplog/asynclogger"
)

// Format is the encoding of a config file
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// tag is the struct tag koanf unmarshals by
const tag = "koanf"

var (
	ErrEmptyPath         = errors.New("config: empty config path")
	ErrUnsupportedFormat = errors.New("config: unsupported config format")
	ErrLoadFailed        = errors.New("config: failed to load config")
	ErrParseFailed       = errors.New("config: failed to parse config")
	ErrUnmarshalFailed   = errors.New("config: failed to unmarshal config")
)

// File mirrors the on-disk settings. Zero values mean "not set" and leave
// the logger default in place.
type File struct {
	Path              string        `koanf:"path"`
	BufferSize        int           `koanf:"buffer_size"`
	MaxLineSize       int           `koanf:"max_line_size"`
	PoolSize          int           `koanf:"pool_size"`
	FlushInterval     time.Duration `koanf:"flush_interval"`
	RotationThreshold int64         `koanf:"rotation_threshold"`
	BaseFilename      string        `koanf:"base_filename"`
	Level             string        `koanf:"level"`
	SyncOnDrain       bool          `koanf:"sync_on_drain"`
	CrashHandler      bool          `koanf:"crash_handler"`
	CrashFlushTimeout time.Duration `koanf:"crash_flush_timeout"`
}

// Load reads path and detects the format from its extension
// (.yaml, .yml or .json).
func Load(path string) (*File, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	return Parse(data, format)
}

// Parse decodes data in the given format. Empty data yields an empty File.
func Parse(data []byte, format Format) (*File, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	k := koanf.New(".")
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}

	var f File
	if err := k.UnmarshalWithConf("", &f, koanf.UnmarshalConf{Tag: tag}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}

	return &f, nil
}

// LoggerConfig converts f to a logger configuration, starting from the
// logger defaults. The result is not validated; asynclogger.New does that.
func (f *File) LoggerConfig() (asynclogger.Config, error) {
	cfg := asynclogger.DefaultConfig(f.Path)

	if f.BufferSize > 0 {
		cfg.BufferSize = f.BufferSize
		cfg.MaxLineSize = f.BufferSize
	}
	if f.MaxLineSize > 0 {
		cfg.MaxLineSize = f.MaxLineSize
	}
	if f.PoolSize > 0 {
		cfg.PoolSize = f.PoolSize
	}
	if f.FlushInterval > 0 {
		cfg.FlushInterval = f.FlushInterval
	}
	if f.RotationThreshold != 0 {
		cfg.RotationThreshold = f.RotationThreshold
	}
	if f.Level != "" {
		level, err := asynclogger.ParseLevel(f.Level)
		if err != nil {
			return cfg, err
		}
		cfg.Level = level
	}
	if f.CrashFlushTimeout > 0 {
		cfg.CrashFlushTimeout = f.CrashFlushTimeout
	}
	cfg.SyncOnDrain = f.SyncOnDrain
	cfg.InstallCrashHandler = f.CrashHandler

	return cfg, nil
}

// Reconfigurable is the part of a logger that can change while it runs.
// *asynclogger.Logger implements it.
type Reconfigurable interface {
	SetLevel(asynclogger.Level)
	SetRotationThreshold(bytes int64)
	SetBaseFilename(name string)
}

// Apply pushes the runtime-adjustable settings in f to target. Unset fields
// are skipped. Nothing is applied if the level is invalid.
func (f *File) Apply(target Reconfigurable) error {
	if f.Level != "" {
		level, err := asynclogger.ParseLevel(f.Level)
		if err != nil {
			return err
		}
		target.SetLevel(level)
	}
	if f.RotationThreshold != 0 {
		target.SetRotationThreshold(f.RotationThreshold)
	}
	if f.BaseFilename != "" {
		target.SetBaseFilename(f.BaseFilename)
	}
	return nil
}

// detectFormat picks the parser from the file extension
func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}

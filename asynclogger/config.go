package asynclogger

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBufferSize is the capacity of each buffer in bytes
	DefaultBufferSize = 64 * 1024

	// DefaultPoolSize is the number of buffers allocated up front
	DefaultPoolSize = 4

	// DefaultFlushInterval bounds the delay between an append and its write
	DefaultFlushInterval = 3 * time.Second

	// DefaultRotationThreshold is the number of bytes written before rotating
	DefaultRotationThreshold = 100 * 1024 * 1024

	// DefaultCrashFlushTimeout is how long the crash handler waits for the writer
	DefaultCrashFlushTimeout = 500 * time.Millisecond

	// minBufferSize leaves room for the header of one line
	minBufferSize = 256
)

// Config holds the configuration for the async logger
type Config struct {
	// LogFilePath is the path to the log file (required).
	// It is also the initial base filename used for rotation.
	LogFilePath string

	// BufferSize is the capacity of each buffer in bytes (default: 64KB)
	BufferSize int

	// MaxLineSize is the longest record kept; longer records are truncated
	// (default and upper bound: BufferSize)
	MaxLineSize int

	// PoolSize is the number of buffers allocated up front (default: 4).
	// The pool grows past it when the writer falls behind.
	PoolSize int

	// FlushInterval is how long the writer sleeps when nobody wakes it (default: 3s)
	FlushInterval time.Duration

	// RotationThreshold is the number of bytes written before the file is rotated
	// (default: 100MB). A negative value disables rotation.
	RotationThreshold int64

	// Level is the initial threshold; lines below it are discarded (default: DEBUG)
	Level Level

	// SyncOnDrain makes the writer fdatasync the file after every drain cycle
	SyncOnDrain bool

	// InstallCrashHandler registers the emergency flush hook in New
	InstallCrashHandler bool

	// CrashFlushTimeout bounds the wait for the writer in the crash path (default: 500ms)
	CrashFlushTimeout time.Duration

	// Diagnostics receives internal failures (default: no-op)
	Diagnostics *zap.Logger
}

// DefaultConfig returns a configuration with baseline defaults
// logPath is required - the path where logs will be written
func DefaultConfig(logPath string) Config {
	return Config{
		LogFilePath:       logPath,
		BufferSize:        DefaultBufferSize,
		MaxLineSize:       DefaultBufferSize,
		PoolSize:          DefaultPoolSize,
		FlushInterval:     DefaultFlushInterval,
		RotationThreshold: DefaultRotationThreshold,
		Level:             LevelDebug,
		CrashFlushTimeout: DefaultCrashFlushTimeout,
	}
}

// Validate checks if the configuration is valid and applies defaults where needed
func (c *Config) Validate() error {
	if c.LogFilePath == "" {
		return ErrMissingPath
	}

	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.BufferSize < minBufferSize {
		return fmt.Errorf("buffer size too small (%d bytes), need at least %d", c.BufferSize, minBufferSize)
	}

	if c.MaxLineSize <= 0 || c.MaxLineSize > c.BufferSize {
		c.MaxLineSize = c.BufferSize
	}

	if c.PoolSize <= 0 {
		c.PoolSize = DefaultPoolSize
	}

	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}

	if c.RotationThreshold == 0 {
		c.RotationThreshold = DefaultRotationThreshold
	}

	if c.Level < LevelDebug || c.Level > LevelFatal {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, c.Level)
	}

	if c.CrashFlushTimeout <= 0 {
		c.CrashFlushTimeout = DefaultCrashFlushTimeout
	}

	if c.Diagnostics == nil {
		c.Diagnostics = zap.NewNop()
	}

	return nil
}

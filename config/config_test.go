package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/neehar-mavuduru/swaplog/asynclogger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const sampleYAML = `
path: /var/log/app/app.log
buffer_size: 8192
pool_size: 6
flush_interval: 500ms
rotation_threshold: 1048576
base_filename: /var/log/app/app.log
level: warn
sync_on_drain: true
crash_handler: true
crash_flush_timeout: 250ms
`

const sampleJSON = `{
  "path": "/var/log/app/app.log",
  "buffer_size": 8192,
  "pool_size": 6,
  "flush_interval": "500ms",
  "rotation_threshold": 1048576,
  "base_filename": "/var/log/app/app.log",
  "level": "WARN",
  "sync_on_drain": true,
  "crash_handler": true,
  "crash_flush_timeout": "250ms"
}`

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{name: "yaml", data: sampleYAML, format: FormatYAML},
		{name: "json", data: sampleJSON, format: FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.data), tt.format)
			require.NoError(t, err)

			assert.Equal(t, "/var/log/app/app.log", f.Path)
			assert.Equal(t, 8192, f.BufferSize)
			assert.Equal(t, 6, f.PoolSize)
			assert.Equal(t, 500*time.Millisecond, f.FlushInterval)
			assert.Equal(t, int64(1048576), f.RotationThreshold)
			assert.Equal(t, "/var/log/app/app.log", f.BaseFilename)
			assert.True(t, f.SyncOnDrain)
			assert.True(t, f.CrashHandler)
			assert.Equal(t, 250*time.Millisecond, f.CrashFlushTimeout)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	t.Run("unsupported format", func(t *testing.T) {
		_, err := Parse([]byte("a=b"), Format("toml"))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Parse([]byte("level: [unterminated"), FormatYAML)
		assert.ErrorIs(t, err, ErrParseFailed)
	})

	t.Run("empty data", func(t *testing.T) {
		f, err := Parse(nil, FormatJSON)
		require.NoError(t, err)
		assert.Equal(t, File{}, *f)
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml by extension", func(t *testing.T) {
		path := filepath.Join(dir, "logger.yml")
		require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0600))

		f, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "warn", f.Level)
	})

	t.Run("json by extension", func(t *testing.T) {
		path := filepath.Join(dir, "logger.JSON")
		require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0600))

		f, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "WARN", f.Level)
	})

	t.Run("unknown extension", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "logger.ini"))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "absent.yaml"))
		assert.ErrorIs(t, err, ErrLoadFailed)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := Load("")
		assert.ErrorIs(t, err, ErrEmptyPath)
	})
}

func TestFile_LoggerConfig(t *testing.T) {
	t.Run("overrides defaults", func(t *testing.T) {
		f, err := Parse([]byte(sampleYAML), FormatYAML)
		require.NoError(t, err)

		cfg, err := f.LoggerConfig()
		require.NoError(t, err)

		assert.Equal(t, "/var/log/app/app.log", cfg.LogFilePath)
		assert.Equal(t, 8192, cfg.BufferSize)
		assert.Equal(t, 8192, cfg.MaxLineSize)
		assert.Equal(t, 6, cfg.PoolSize)
		assert.Equal(t, 500*time.Millisecond, cfg.FlushInterval)
		assert.Equal(t, int64(1048576), cfg.RotationThreshold)
		assert.Equal(t, asynclogger.LevelWarn, cfg.Level)
		assert.True(t, cfg.SyncOnDrain)
		assert.True(t, cfg.InstallCrashHandler)
		assert.Equal(t, 250*time.Millisecond, cfg.CrashFlushTimeout)
	})

	t.Run("unset fields keep defaults", func(t *testing.T) {
		f := &File{Path: "/tmp/x.log"}

		cfg, err := f.LoggerConfig()
		require.NoError(t, err)
		assert.Equal(t, asynclogger.DefaultConfig("/tmp/x.log"), cfg)
	})

	t.Run("invalid level", func(t *testing.T) {
		f := &File{Path: "/tmp/x.log", Level: "loud"}

		_, err := f.LoggerConfig()
		assert.ErrorIs(t, err, asynclogger.ErrInvalidLevel)
	})
}

// recorder is a Reconfigurable that remembers what was applied
type recorder struct {
	calls     chan string
	level     asynclogger.Level
	threshold int64
	base      string
}

func newRecorder() *recorder {
	return &recorder{calls: make(chan string, 16)}
}

func (r *recorder) SetLevel(l asynclogger.Level) {
	r.level = l
	r.calls <- "level"
}

func (r *recorder) SetRotationThreshold(n int64) {
	r.threshold = n
	r.calls <- "threshold"
}

func (r *recorder) SetBaseFilename(name string) {
	r.base = name
	r.calls <- "base"
}

func TestFile_Apply(t *testing.T) {
	t.Run("applies set fields", func(t *testing.T) {
		r := newRecorder()
		f := &File{Level: "error", RotationThreshold: -1, BaseFilename: "/logs/new.log"}

		require.NoError(t, f.Apply(r))
		assert.Equal(t, asynclogger.LevelError, r.level)
		assert.Equal(t, int64(-1), r.threshold)
		assert.Equal(t, "/logs/new.log", r.base)
		assert.Len(t, r.calls, 3)
	})

	t.Run("skips unset fields", func(t *testing.T) {
		r := newRecorder()
		require.NoError(t, (&File{}).Apply(r))
		assert.Empty(t, r.calls)
	})

	t.Run("invalid level applies nothing", func(t *testing.T) {
		r := newRecorder()
		err := (&File{Level: "nope", BaseFilename: "/x"}).Apply(r)
		assert.True(t, errors.Is(err, asynclogger.ErrInvalidLevel))
		assert.Empty(t, r.calls)
	})
}

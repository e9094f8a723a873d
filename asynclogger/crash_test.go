package asynclogger

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for the handler goroutine and the test
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// exitRecorder replaces os.Exit
type exitRecorder struct {
	codes chan int
}

func newExitRecorder() *exitRecorder {
	return &exitRecorder{codes: make(chan int, 4)}
}

func (e *exitRecorder) exit(code int) {
	e.codes <- code
}

func TestCrashHandler_RecoverAndFlush(t *testing.T) {
	config := testConfig(t)
	logger, err := New(config)
	require.NoError(t, err)
	defer logger.Close()

	exits := newExitRecorder()
	stderr := &syncBuffer{}
	handler := InstallCrashHandler(logger, WithExitFunc(exits.exit), WithStderr(stderr))
	defer handler.Stop()

	logger.Logf(LevelError, "last words")

	func() {
		defer handler.RecoverAndFlush()
		panic("boom")
	}()

	select {
	case code := <-exits.codes:
		assert.Equal(t, 2, code)
	default:
		t.Fatal("exit was not called")
	}

	// The buffered line reached the file before exit
	lines := readLines(t, config.LogFilePath)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], "last words"))

	out := stderr.String()
	assert.Contains(t, out, "[LOGGER CRASH] panic: boom")
	assert.Contains(t, out, "TestCrashHandler_RecoverAndFlush")
}

func TestCrashHandler_FiresOnce(t *testing.T) {
	logger, err := New(testConfig(t))
	require.NoError(t, err)
	defer logger.Close()

	exits := newExitRecorder()
	handler := InstallCrashHandler(logger, WithExitFunc(exits.exit), WithStderr(&syncBuffer{}))
	defer handler.Stop()

	for i := 0; i < 3; i++ {
		func() {
			defer handler.RecoverAndFlush()
			panic(i)
		}()
	}

	assert.Len(t, exits.codes, 1)
}

func TestCrashHandler_NoPanic(t *testing.T) {
	logger, err := New(testConfig(t))
	require.NoError(t, err)
	defer logger.Close()

	exits := newExitRecorder()
	handler := InstallCrashHandler(logger, WithExitFunc(exits.exit), WithStderr(&syncBuffer{}))
	defer handler.Stop()

	func() {
		defer handler.RecoverAndFlush()
	}()

	assert.Empty(t, exits.codes)
}

func TestCrashHandler_ClosedLogger(t *testing.T) {
	logger, err := New(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, logger.Close())

	exits := newExitRecorder()
	stderr := &syncBuffer{}
	handler := InstallCrashHandler(logger,
		WithExitFunc(exits.exit),
		WithStderr(stderr),
		WithCrashFlushTimeout(50*time.Millisecond))
	defer handler.Stop()

	func() {
		defer handler.RecoverAndFlush()
		panic("late")
	}()

	// The process still exits even though nothing could be flushed
	assert.Len(t, exits.codes, 1)
	assert.Contains(t, stderr.String(), "flush incomplete: "+ErrClosed.Error())
}

func TestCrashHandler_InstalledByConfig(t *testing.T) {
	config := testConfig(t)
	config.InstallCrashHandler = true
	config.CrashFlushTimeout = 100 * time.Millisecond

	logger, err := New(config)
	require.NoError(t, err)
	require.NotNil(t, logger.crash)
	assert.Equal(t, 100*time.Millisecond, logger.crash.timeout)

	// Close stops the handler goroutine; goleak checks it is gone
	require.NoError(t, logger.Close())

	select {
	case <-logger.crash.done:
	default:
		t.Fatal("crash handler still running after Close")
	}
}

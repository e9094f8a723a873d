package metrics

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neehar-mavuduru/swaplog/asynclogger"
)

type fakeSource struct {
	stats asynclogger.Stats
}

func (f *fakeSource) Stats() asynclogger.Stats { return f.stats }

func TestCollector_ExportsSnapshot(t *testing.T) {
	src := &fakeSource{stats: asynclogger.Stats{
		TotalLogs:      42,
		DroppedLogs:    1,
		BytesWritten:   4096,
		Rotations:      3,
		PendingBuffers: 2,
	}}

	c := NewCollector(src, "app")

	expected := `
# HELP app_logger_logs_total Log lines accepted past the level filter.
# TYPE app_logger_logs_total counter
app_logger_logs_total 42
# HELP app_logger_rotations_total Log file rotations.
# TYPE app_logger_rotations_total counter
app_logger_rotations_total 3
# HELP app_logger_pending_buffers Buffers waiting for the writer.
# TYPE app_logger_pending_buffers gauge
app_logger_pending_buffers 2
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"app_logger_logs_total", "app_logger_rotations_total", "app_logger_pending_buffers")
	require.NoError(t, err)

	assert.Equal(t, 12, testutil.CollectAndCount(c))
}

func TestCollector_ReadsFreshValues(t *testing.T) {
	src := &fakeSource{}
	c := NewCollector(src, "")

	expect := func(v string) string {
		return `
# HELP logger_bytes_written_total Bytes written to the log file.
# TYPE logger_bytes_written_total counter
logger_bytes_written_total ` + v + "\n"
	}

	src.stats.BytesWritten = 10
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expect("10")), "logger_bytes_written_total"))

	src.stats.BytesWritten = 25
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expect("25")), "logger_bytes_written_total"))
}

func TestCollector_RegistersWithLogger(t *testing.T) {
	cfg := asynclogger.DefaultConfig(filepath.Join(t.TempDir(), "app.log"))
	logger, err := asynclogger.New(cfg)
	require.NoError(t, err)
	defer logger.Close()

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(NewCollector(logger, "test")))

	logger.Logf(asynclogger.LevelInfo, "hello %d", 1)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 12)

	count, err := testutil.GatherAndCount(registry, "test_logger_logs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

package stdout

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerOptions{Level: "warn", Output: &buf})

	logger.Debug("debug line")
	logger.Info("info line")
	logger.Warn("warn line")
	logger.Error("error line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, "[WARN] warn line")
	assert.Contains(t, out, "[ERROR] error line")
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerOptions{Level: "debug", JSON: true, Output: &buf}).
		WithFields(map[string]interface{}{"component": "extractor"})

	logger.Warn("skipping unsafe archive entry", "entry", "../evil.txt", "error", errors.New("escapes"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "extractor", entry["component"])
	assert.Equal(t, "../evil.txt", entry["entry"])
	assert.Equal(t, "escapes", entry["error"])
}

func TestLogger_WithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(LoggerOptions{Output: &buf})
	_ = parent.WithFields(map[string]interface{}{"run_id": "abc"})

	parent.Info("hello")
	assert.False(t, strings.Contains(buf.String(), "run_id"))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(in))
		})
	}
}

func TestMetrics_SharedStoreAcrossTags(t *testing.T) {
	base := NewMetricsTo(io.Discard, false)
	scoped := base.WithTags(map[string]string{"component": "fetcher"})

	scoped.IncrementCounter("fetch.attempts", nil)
	scoped.IncrementCounter("fetch.attempts", nil)
	scoped.RecordHistogram("fetch.duration_ms", 12, nil)
	scoped.RecordGauge("fetch.bytes", 2048, nil)

	tags := map[string]string{"component": "fetcher"}
	assert.Equal(t, int64(2), base.GetCounter("fetch.attempts", tags))
	assert.Equal(t, []float64{12}, base.GetHistogram("fetch.duration_ms", tags))
	assert.Equal(t, 2048.0, base.GetGauge("fetch.bytes", tags))
	assert.Equal(t, int64(0), base.GetCounter("fetch.attempts", nil))
}

func TestMetrics_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	m := NewMetricsTo(&buf, false)

	m.IncrementCounter("extract.entries.skipped", map[string]string{"reason": "outside_destination"})
	assert.Contains(t, buf.String(), "[METRIC] COUNTER extract.entries.skipped=1.00 reason=outside_destination")
}

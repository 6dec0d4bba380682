package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("catalog", "1.0.0", WarnLevel)
	logger.SetOutput(&buf)

	ctx := context.Background()
	logger.Debug(ctx, "[DEBUG_TAG] hidden", nil)
	logger.Info(ctx, "[INFO_TAG] hidden", nil)
	logger.Warn(ctx, "[WARN_TAG] shown", Fields{"count": 3})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "[WARN_TAG] shown", entries[0]["message"])
	assert.Equal(t, "warning", entries[0]["level"])
	assert.Equal(t, "catalog", entries[0]["service"])
	assert.Equal(t, "1.0.0", entries[0]["version"])

	fields, ok := entries[0]["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 3, fields["count"])
}

func TestStructuredLogger_ErrorAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("catalog", "1.0.0", DebugLevel)
	logger.SetOutput(&buf)

	ctx := WithRequestID(context.Background(), "req-42")
	logger.Error(ctx, "[FETCH_ERROR] failed", Fields{"endpoint": "GetParameterList"}, errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0]["error"])
	assert.Equal(t, "req-42", entries[0]["request_id"])
	assert.NotEmpty(t, entries[0]["file"])
}

func TestContextLogger_MergesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("catalog", "1.0.0", InfoLevel)
	logger.SetOutput(&buf)

	scoped := logger.WithFields(Fields{"datastore": "Aquarius", "count": 1})
	scoped.Info(context.Background(), "[SCOPED] message", Fields{"count": 2})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	fields := entries[0]["fields"].(map[string]interface{})
	assert.Equal(t, "Aquarius", fields["datastore"])
	assert.EqualValues(t, 2, fields["count"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DebugLevel},
		{" WARN ", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestRequestIDFromContext(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
	id := NewRequestID()
	assert.Len(t, id, 36)
	assert.Equal(t, id, RequestIDFromContext(WithRequestID(context.Background(), id)))
}

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.TraceLevel, ParseLevel("trace"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestNewWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Component(New(Config{Level: "info", Output: &buf}), "search")

	l.Info().Int("total", 3).Msg("search done")
	l.Debug().Msg("filtered out")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "guidenaturel", entry["service"])
	assert.Equal(t, "search", entry["component"])
	assert.Equal(t, "search done", entry["message"])
	assert.EqualValues(t, 3, entry["total"])
}

func TestGormAdapterLevels(t *testing.T) {
	var buf bytes.Buffer
	a := NewGormAdapter(New(Config{Level: "info", Output: &buf}), 10*time.Millisecond)
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT 1", 1 }

	a.Trace(ctx, time.Now(), sql, nil)
	assert.Empty(t, buf.String(), "fast queries stay at trace level")

	a.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	assert.Contains(t, buf.String(), "slow query")

	buf.Reset()
	a.Trace(ctx, time.Now(), sql, errors.New("boom"))
	assert.Contains(t, buf.String(), "query error")
	assert.Contains(t, buf.String(), "boom")
}

//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"uplus-loyalty/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWith_AddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriter(&buf, config.LogConfig{Level: "debug", Format: "json"}, false)

	ctx := WithUserID(WithTraceID(context.Background(), "tr-1"), "u-9")
	With(ctx, base).Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "tr-1", line["trace_id"])
	assert.Equal(t, "u-9", line["user_id"])
	assert.Equal(t, "tr-1", TraceID(ctx))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "***", Redact("short", false))
	assert.Equal(t, "eyJh...Xw", Redact("eyJhbGciOiJIUzI1NiJ9.Xw", false))
	assert.Equal(t, "raw", Redact("raw", true))
	assert.Equal(t, "j***@example.com", RedactEmail("jane@example.com", false))
	assert.Equal(t, "jane@example.com", RedactEmail("jane@example.com", true))
}

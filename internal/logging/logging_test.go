package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		logger := New(tt.in, &bytes.Buffer{})
		assert.Equal(t, tt.want, logger.GetLevel(), tt.in)
	}
}

func TestNewWritesPlainText(t *testing.T) {
	var buf bytes.Buffer
	logger := New("info", &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Str("run", "run_1").Msg("generated")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "generated")
	assert.Contains(t, out, "run=run_1")
	assert.NotContains(t, out, "\x1b[")
}

package mylog_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/habiliai/dataagent/internal/mylog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, mylog.ToLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, mylog.ToLogLevel("warn"))
	assert.Equal(t, slog.LevelError, mylog.ToLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, mylog.ToLogLevel("verbose"))
}

func TestNewLoggerWithWriter(t *testing.T) {
	t.Run("given json handler, when logging, then writes a json record", func(t *testing.T) {
		var buf bytes.Buffer
		logger := mylog.NewLoggerWithWriter("info", "json", &buf)
		logger.Info("indexed", "tables", 3)

		require.NotEmpty(t, buf.String())
		assert.Contains(t, buf.String(), `"msg":"indexed"`)
		assert.Contains(t, buf.String(), `"tables":3`)
	})

	t.Run("given warn level, when logging info, then nothing is written", func(t *testing.T) {
		var buf bytes.Buffer
		logger := mylog.NewLoggerWithWriter("warn", "text", &buf)
		logger.Info("skipped")

		assert.Empty(t, buf.String())
	})
}

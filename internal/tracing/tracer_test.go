package tracing_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/habiliai/dataagent/errors"
	"github.com/habiliai/dataagent/internal/mylog"
	"github.com/habiliai/dataagent/internal/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestProvider_LogsSpans(t *testing.T) {
	var buf bytes.Buffer
	logger := mylog.NewLoggerWithWriter("debug", "json", &buf)
	p := tracing.NewProvider(logger, false)
	defer func() { require.NoError(t, p.Shutdown(t.Context())) }()

	_, span := p.Tracer().Start(t.Context(), "tool.run_sql")
	span.SetAttributes(
		attribute.String("tool", "run_sql"),
		attribute.String("sql", strings.Repeat("x", 300)),
	)
	tracing.End(span, nil)

	out := buf.String()
	assert.Contains(t, out, `"msg":"span start"`)
	assert.Contains(t, out, `"msg":"span end"`)
	assert.Contains(t, out, `"tool":"run_sql"`)
	assert.NotContains(t, out, strings.Repeat("x", 300))
}

func TestEnd_RecordsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := mylog.NewLoggerWithWriter("debug", "json", &buf)
	p := tracing.NewProvider(logger, true)

	_, span := p.Tracer().Start(t.Context(), "model.generate")
	tracing.End(span, errors.New("rate limited"))

	assert.Contains(t, buf.String(), `"msg":"span failed"`)
	assert.Contains(t, buf.String(), "rate limited")
}

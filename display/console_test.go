package display_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/habiliai/dataagent/display"
	"github.com/habiliai/dataagent/sandbox"
	"github.com/habiliai/dataagent/tool"
	"github.com/habiliai/dataagent/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCode(t *testing.T, code string) *sandbox.Value {
	t.Helper()
	out, err := sandbox.NewExecutor().Execute(t.Context(), code, nil)
	require.NoError(t, err)
	return &out.Value
}

func TestConsole_ToolActivity(t *testing.T) {
	var buf bytes.Buffer
	c := display.NewConsole(&buf)

	c.ToolCall(tool.RunSQL, "querying orders")
	c.ToolCall(tool.SendMessage, strings.Repeat("x", 70))
	c.ToolResult(tool.RunSQL, "a\nb\nc\nd\ne")

	out := buf.String()
	assert.Contains(t, out, "  > Run Sql · querying orders")
	assert.Contains(t, out, "· "+strings.Repeat("x", 57)+"...")
	assert.Contains(t, out, "... (2 more lines)")

	buf.Reset()
	c.SetVerbose(true)
	c.ToolResult(tool.RunSQL, "a\nb\nc\nd\ne")
	assert.NotContains(t, buf.String(), "more lines")
}

func TestConsole_ComputedAnswer(t *testing.T) {
	t.Run("given a number, when showing the answer, then inputs, code and result are shown", func(t *testing.T) {
		var buf bytes.Buffer
		display.NewConsole(&buf).ComputedAnswer(&tool.ComputedAnswer{
			Success:      true,
			Result:       runCode(t, "result = 1234567"),
			InputsUsed:   map[string]*warehouse.Table{"orders": {Columns: []string{"amount"}, Rows: [][]any{{1.0}, {2.0}}}},
			FunctionCode: "result = 1234567",
			Explanation:  "Total revenue",
		})

		out := buf.String()
		assert.Contains(t, out, "Total revenue")
		assert.Contains(t, out, "SQL Inputs:")
		assert.Contains(t, out, "orders: 2 rows")
		assert.Contains(t, out, "Function Applied")
		assert.Contains(t, out, "1,234,567")
	})

	t.Run("given a table, when showing the answer, then rows are tabulated", func(t *testing.T) {
		var buf bytes.Buffer
		display.NewConsole(&buf).ComputedAnswer(&tool.ComputedAnswer{
			Success: true,
			Result:  runCode(t, `result = frame.new({"region": ["north", "south"], "revenue": [40.5, 20]})`),
		})

		out := buf.String()
		assert.Contains(t, out, "region")
		assert.Contains(t, out, "40.50")
		assert.Contains(t, out, "2 rows")
	})

	t.Run("given a failure, when showing the answer, then the error panel and code are shown", func(t *testing.T) {
		var buf bytes.Buffer
		display.NewConsole(&buf).ComputedAnswer(&tool.ComputedAnswer{
			Error:        "Function execution error: boom",
			FunctionCode: "result = boom()",
		})

		out := buf.String()
		assert.Contains(t, out, "Execution Failed")
		assert.Contains(t, out, "Function execution error: boom")
		assert.Contains(t, out, "result = boom()")
	})
}

func TestConsole_ObservationAndArtifact(t *testing.T) {
	var buf bytes.Buffer
	c := display.NewConsole(&buf)

	c.Observation(&tool.ObservationAnswer{
		Observation:       "Revenue doubled in February.",
		SupportingQueries: map[string]string{"monthly": "SELECT 1"},
		SupportingData:    "jan 10, feb 20",
	})
	c.Artifact(&tool.ArtifactOutput{Success: true, URL: "http://localhost:1234/chart.html", Explanation: "Chart"})
	c.Artifact(&tool.ArtifactOutput{Error: "SQL error for 'x': no such table"})

	out := buf.String()
	assert.Contains(t, out, "Revenue doubled in February.")
	assert.Contains(t, out, "Queries Used")
	assert.Contains(t, out, "monthly:")
	assert.Contains(t, out, "Supporting Data")
	assert.Contains(t, out, display.Divider)
	assert.Contains(t, out, "http://localhost:1234/chart.html")
	assert.Contains(t, out, "Render Failed")
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "60", display.FormatNumber(*runCode(t, "result = 60.0")))
	assert.Equal(t, "1,234.57", display.FormatNumber(*runCode(t, "result = 1234.5678")))
	assert.Equal(t, "-12", display.FormatNumber(*runCode(t, "result = -12")))
}

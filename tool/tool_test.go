package tool_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/habiliai/dataagent/artifact"
	"github.com/habiliai/dataagent/config"
	"github.com/habiliai/dataagent/errors"
	"github.com/habiliai/dataagent/llm"
	"github.com/habiliai/dataagent/notes"
	"github.com/habiliai/dataagent/platform"
	"github.com/habiliai/dataagent/sandbox"
	"github.com/habiliai/dataagent/tool"
	"github.com/habiliai/dataagent/warehouse"
	"github.com/habiliai/dataagent/warehouse/warehousetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	registry *tool.Registry
	notes    *notes.File
	opened   []string
}

func newFixture(t *testing.T, maxRows int) *fixture {
	t.Helper()

	exec, err := warehouse.Open(t.Context(), config.WarehouseConfig{
		Driver: "sqlite",
		DSN:    warehousetest.NewSQLite(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })

	f := &fixture{
		registry: tool.NewRegistry(),
		notes:    notes.NewFile(filepath.Join(t.TempDir(), "CONTEXT.md")),
	}
	server := artifact.NewServer(t.TempDir(), artifact.WithOpener(func(url string) error {
		f.opened = append(f.opened, url)
		return nil
	}))
	t.Cleanup(func() { _ = server.Close(context.Background()) })

	require.NoError(t, tool.RegisterBuiltins(f.registry, &tool.Builtins{
		Warehouse: exec,
		Sandbox:   sandbox.NewExecutor(),
		Platform:  platform.NewInspector(config.PlatformConfig{}),
		Notes:     f.notes,
		Artifacts: server,
		MaxRows:   maxRows,
	}))
	return f
}

func (f *fixture) dispatch(t *testing.T, name string, args any) (*tool.Result, tool.Definition) {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)

	result, def, err := f.registry.Dispatch(t.Context(), llm.ToolCall{ID: "call_1", Name: name, Arguments: string(raw)})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result, def
}

func names(defs []tool.Definition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Name)
	}
	return out
}

func TestRegistry(t *testing.T) {
	t.Run("given a registered name, when adding it again, then registration fails", func(t *testing.T) {
		r := tool.NewRegistry()
		def := tool.Definition{Name: "echo"}
		handler := func(context.Context, map[string]any) (*tool.Result, error) { return &tool.Result{Text: "ok"}, nil }

		require.NoError(t, r.Add(def, handler))
		assert.EqualError(t, r.Add(def, handler), "tool echo already registered")
	})

	t.Run("given an unknown name, when getting it, then the unknown tool error is returned", func(t *testing.T) {
		_, err := tool.NewRegistry().Get("nope")
		assert.ErrorIs(t, err, errors.ErrUnknownTool)
		assert.Contains(t, err.Error(), "tool nope not found")
	})

	t.Run("given an unknown name, when dispatching, then no handler runs and the error names the tool", func(t *testing.T) {
		_, _, err := tool.NewRegistry().Dispatch(t.Context(), llm.ToolCall{ID: "1", Name: "drop_tables"})
		require.ErrorIs(t, err, errors.ErrUnknownTool)
		assert.True(t, strings.HasPrefix(err.Error(), "Unknown tool: drop_tables"))
	})

	t.Run("given failing handlers, when dispatching, then errors become failed results", func(t *testing.T) {
		r := tool.NewRegistry()
		require.NoError(t, r.Add(tool.Definition{Name: "boom"}, func(context.Context, map[string]any) (*tool.Result, error) {
			panic("boom")
		}))
		require.NoError(t, r.Add(tool.Definition{Name: "fail"}, func(context.Context, map[string]any) (*tool.Result, error) {
			return nil, errors.New("disk full")
		}))
		require.NoError(t, r.Add(tool.Definition{Name: "slow"}, func(ctx context.Context, _ map[string]any) (*tool.Result, error) {
			return nil, errors.Wrapf(context.DeadlineExceeded, "waited")
		}))

		result, _, err := r.Dispatch(t.Context(), llm.ToolCall{Name: "boom"})
		require.NoError(t, err)
		assert.True(t, result.Failed)
		assert.Equal(t, "Error: Panic: boom", result.Text)

		result, _, err = r.Dispatch(t.Context(), llm.ToolCall{Name: "fail"})
		require.NoError(t, err)
		assert.Equal(t, "Error: Error: disk full", result.Text)

		result, _, err = r.Dispatch(t.Context(), llm.ToolCall{Name: "slow"})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(result.Text, "Error: Timeout: waited"))
	})

	t.Run("given malformed arguments, when dispatching, then the result describes the problem", func(t *testing.T) {
		f := newFixture(t, 0)

		result, _, err := f.registry.Dispatch(t.Context(), llm.ToolCall{Name: tool.RunSQL, Arguments: "{not json"})
		require.NoError(t, err)
		assert.True(t, result.Failed)
		assert.True(t, strings.HasPrefix(result.Text, "ERROR: invalid arguments for run_sql: "))

		result, _ = f.dispatch(t, tool.RunSQL, map[string]any{})
		assert.True(t, result.Failed)
		assert.Contains(t, result.Text, "sql is required")

		result, _ = f.dispatch(t, tool.UpdateContext, map[string]any{"section": "gossip", "content": "x"})
		assert.True(t, result.Failed)
		assert.Contains(t, result.Text, "ERROR: invalid arguments for update_context")
	})
}

func TestRegistry_Enabled(t *testing.T) {
	f := newFixture(t, 0)
	internal := []string{
		tool.RunSQL, tool.RunCode, tool.InspectSchema, tool.InspectPlatform,
		tool.ReadContext, tool.UpdateContext,
	}

	testCases := []struct {
		mode     tool.OutputMode
		expected []string
	}{
		{tool.ModeAuto, append(append([]string{}, internal...), tool.SubmitResult, tool.SubmitObservation, tool.RenderArtifact, tool.SendMessage)},
		{tool.ModeObservation, append(append([]string{}, internal...), tool.SubmitObservation, tool.SendMessage)},
		{tool.ModeQuery, append(append([]string{}, internal...), tool.SubmitResult, tool.SendMessage)},
	}
	for _, tc := range testCases {
		t.Run(string(tc.mode), func(t *testing.T) {
			assert.Equal(t, tc.expected, names(f.registry.Enabled(tc.mode)))

			specs := f.registry.Specs(tc.mode)
			require.Len(t, specs, len(tc.expected))
			assert.Equal(t, "object", specs[0].Parameters["type"])
			assert.Equal(t, []any{"sql"}, specs[0].Parameters["required"])
		})
	}
}

func TestRunSQL(t *testing.T) {
	f := newFixture(t, 2)

	t.Run("given more rows than allowed, when querying, then the rows are truncated with a notice", func(t *testing.T) {
		result, def := f.dispatch(t, tool.RunSQL, map[string]any{"sql": "SELECT id FROM orders ORDER BY id"})
		assert.Equal(t, tool.KindInternal, def.Kind)
		assert.False(t, result.Failed)
		assert.Equal(t, "id\n 1\n 2\n\n[TRUNCATED: showing 2 of 3 rows. Use LIMIT in SQL or filter to see specific data.]", result.Text)
	})

	t.Run("given no matching rows, when querying, then the empty message is returned", func(t *testing.T) {
		result, _ := f.dispatch(t, tool.RunSQL, map[string]any{"sql": "SELECT id FROM orders WHERE amount > 1000"})
		assert.Equal(t, "Query returned no results.", result.Text)
	})

	t.Run("given invalid sql, when querying, then the error is returned as text", func(t *testing.T) {
		result, _ := f.dispatch(t, tool.RunSQL, map[string]any{"sql": "SELECT * FROM missing_table"})
		assert.True(t, result.Failed)
		assert.True(t, strings.HasPrefix(result.Text, "ERROR: "))
		assert.Contains(t, result.Text, "missing_table")
	})
}

func TestRunCode(t *testing.T) {
	f := newFixture(t, 0)

	t.Run("given a query input, when running code, then the result is rendered", func(t *testing.T) {
		result, _ := f.dispatch(t, tool.RunCode, map[string]any{
			"queries": map[string]string{"orders": "SELECT amount FROM orders"},
			"code":    "print(len(orders))\nresult = orders[\"amount\"].sum()",
		})
		assert.False(t, result.Failed)
		assert.Equal(t, "3\n\n60", result.Text)
	})

	t.Run("given a failing query, when running code, then the input is named", func(t *testing.T) {
		result, _ := f.dispatch(t, tool.RunCode, map[string]any{
			"queries": map[string]string{"bad": "SELECT nope FROM orders"},
			"code":    "result = 1",
		})
		assert.True(t, result.Failed)
		assert.True(t, strings.HasPrefix(result.Text, "ERROR executing SQL for 'bad': "))
	})

	t.Run("given several failing queries, when running code, then inputs run in name order", func(t *testing.T) {
		for range 5 {
			result, _ := f.dispatch(t, tool.RunCode, map[string]any{
				"queries": map[string]string{
					"zeta":  "SELECT nope FROM orders",
					"alpha": "SELECT nope FROM orders",
					"mid":   "SELECT nope FROM orders",
				},
				"code": "result = 1",
			})
			assert.True(t, strings.HasPrefix(result.Text, "ERROR executing SQL for 'alpha': "))
		}
	})

	t.Run("given code without a result, when running code, then the error is returned", func(t *testing.T) {
		result, _ := f.dispatch(t, tool.RunCode, map[string]any{
			"queries": map[string]string{},
			"code":    "x = 1",
		})
		assert.Equal(t, "ERROR: Code must define a 'result' variable", result.Text)
	})
}

func TestInspectSchema(t *testing.T) {
	f := newFixture(t, 0)

	testCases := []struct {
		name     string
		args     map[string]any
		contains []string
	}{
		{
			name:     "list_tables",
			args:     map[string]any{"action": "list_tables"},
			contains: []string{"Tables in database:", "  main.orders (3 rows)", "  main.customers (2 rows)"},
		},
		{
			name:     "get_columns",
			args:     map[string]any{"action": "get_columns", "schema": "main", "table": "customers"},
			contains: []string{"Columns in main.customers:", "  name: TEXT (not null)", "  region: TEXT (nullable)"},
		},
		{
			name:     "get_columns without a table",
			args:     map[string]any{"action": "get_columns"},
			contains: []string{"ERROR: 'schema' and 'table' are required for get_columns"},
		},
		{
			name:     "get_sample",
			args:     map[string]any{"action": "get_sample", "schema": "main", "table": "customers", "limit": 1},
			contains: []string{"Sample data from main.customers:\n", "Acme"},
		},
		{
			name:     "get_sample without a schema",
			args:     map[string]any{"action": "get_sample", "table": "customers"},
			contains: []string{"ERROR: 'schema' and 'table' are required for get_sample"},
		},
		{
			name:     "full_schema",
			args:     map[string]any{"action": "full_schema"},
			contains: []string{"# Database Schema", "main.orders"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, _ := f.dispatch(t, tool.InspectSchema, tc.args)
			for _, s := range tc.contains {
				assert.Contains(t, result.Text, s)
			}
		})
	}

	t.Run("given a sample limit of one, when sampling, then one row is shown", func(t *testing.T) {
		result, _ := f.dispatch(t, tool.InspectSchema, map[string]any{"action": "get_sample", "schema": "main", "table": "customers", "limit": 1})
		assert.NotContains(t, result.Text, "Globex")
	})
}

func TestSubmitResult(t *testing.T) {
	f := newFixture(t, 0)

	t.Run("given valid inputs, when submitting, then the computed answer is the payload", func(t *testing.T) {
		result, def := f.dispatch(t, tool.SubmitResult, map[string]any{
			"inputs":      map[string]string{"orders": "SELECT amount FROM orders"},
			"function":    `result = orders["amount"].sum()`,
			"explanation": "Total of all order amounts",
		})
		assert.Equal(t, tool.KindTerminal, def.Kind)
		assert.Equal(t, "Result displayed to user.", def.Confirmation)
		assert.False(t, result.Failed)

		answer, ok := result.Payload.(*tool.ComputedAnswer)
		require.True(t, ok)
		assert.True(t, answer.Success)
		require.NotNil(t, answer.Result)
		assert.Equal(t, "60", answer.Result.String())
		assert.Equal(t, 3, answer.InputsUsed["orders"].Len())
		assert.Equal(t, "Total of all order amounts", answer.Explanation)
	})

	t.Run("given an invalid input query, when submitting, then the input is named", func(t *testing.T) {
		result, _ := f.dispatch(t, tool.SubmitResult, map[string]any{
			"inputs":      map[string]string{"orders": "SELECT amount FROM nowhere"},
			"function":    "result = 1",
			"explanation": "x",
		})
		assert.True(t, result.Failed)
		assert.True(t, strings.HasPrefix(result.Text, "SQL error for input 'orders': "))

		answer := result.Payload.(*tool.ComputedAnswer)
		assert.False(t, answer.Success)
		assert.Equal(t, "result = 1", answer.FunctionCode)
	})

	t.Run("given a failing function, when submitting, then the execution error is returned", func(t *testing.T) {
		result, _ := f.dispatch(t, tool.SubmitResult, map[string]any{
			"inputs":      map[string]string{"orders": "SELECT amount FROM orders"},
			"function":    "total = 1",
			"explanation": "x",
		})
		assert.True(t, result.Failed)
		assert.Equal(t, "Function execution error: Code must define a 'result' variable", result.Text)
	})

	t.Run("given missing fields, when submitting, then validation fails before execution", func(t *testing.T) {
		result, _ := f.dispatch(t, tool.SubmitResult, map[string]any{"inputs": map[string]string{}})
		assert.True(t, result.Failed)
		assert.Contains(t, result.Text, "function is required")
		assert.Contains(t, result.Text, "explanation is required")
	})
}

func TestSubmitObservation(t *testing.T) {
	f := newFixture(t, 0)

	result, def := f.dispatch(t, tool.SubmitObservation, map[string]any{
		"observation":        "February revenue doubled.",
		"supporting_queries": map[string]string{"monthly": "SELECT 1"},
	})
	assert.Equal(t, tool.KindTerminal, def.Kind)
	assert.Equal(t, "Observation displayed to user.", result.Text)
	assert.Equal(t, &tool.ObservationAnswer{
		Observation:       "February revenue doubled.",
		SupportingQueries: map[string]string{"monthly": "SELECT 1"},
	}, result.Payload)
}

func TestRenderArtifact(t *testing.T) {
	f := newFixture(t, 0)

	t.Run("given queries and html, when rendering, then data is injected and the page opened", func(t *testing.T) {
		result, _ := f.dispatch(t, tool.RenderArtifact, map[string]any{
			"inputs":      map[string]string{"regions": "SELECT region FROM customers ORDER BY id"},
			"code":        "<html><head><title>x</title></head><body></body></html>",
			"filename":    "regions.html",
			"explanation": "Regions",
		})
		require.False(t, result.Failed, result.Text)
		assert.Equal(t, "Artifact rendered and opened.", result.Text)

		out := result.Payload.(*tool.ArtifactOutput)
		assert.True(t, out.Success)
		assert.Equal(t, []string{out.URL}, f.opened)

		html, err := os.ReadFile(out.FilePath)
		require.NoError(t, err)
		assert.Contains(t, string(html), `<script>window.DATA = {"regions":[{"region":"north"},{"region":"south"}]};</script>`)
	})

	t.Run("given a failing query, when rendering, then the failure is reported", func(t *testing.T) {
		result, _ := f.dispatch(t, tool.RenderArtifact, map[string]any{
			"inputs":      map[string]string{"regions": "SELECT nope FROM customers"},
			"code":        "<html></html>",
			"filename":    "regions.html",
			"explanation": "Regions",
		})
		assert.True(t, result.Failed)
		assert.True(t, strings.HasPrefix(result.Text, "Render failed: SQL error for 'regions': "))
	})
}

func TestSendMessageAndContext(t *testing.T) {
	f := newFixture(t, 0)

	result, def := f.dispatch(t, tool.SendMessage, map[string]any{"message": "Looking at orders first."})
	assert.Equal(t, tool.KindMessage, def.Kind)
	assert.Equal(t, "Message sent.", result.Text)
	assert.Equal(t, &tool.UserMessage{Message: "Looking at orders first."}, result.Payload)

	result, _ = f.dispatch(t, tool.ReadContext, map[string]any{})
	assert.Equal(t, "No context file exists yet.", result.Text)

	require.NoError(t, f.notes.Create())
	result, _ = f.dispatch(t, tool.UpdateContext, map[string]any{"section": "key_tables", "content": "- orders: one row per order"})
	assert.Equal(t, "Updated key_tables section.", result.Text)

	result, _ = f.dispatch(t, tool.ReadContext, nil)
	assert.Contains(t, result.Text, "## Key Tables\n- orders: one row per order\n## Relationships")

	result, _ = f.dispatch(t, tool.InspectPlatform, map[string]any{"action": "show_dag"})
	assert.Equal(t, "Error: 'name' required for show_dag", result.Text)
}

func TestSummarize(t *testing.T) {
	testCases := []struct {
		name     string
		args     string
		expected string
	}{
		{tool.RunSQL, `{"sql":"SELECT * FROM Marts.Orders WHERE x"}`, "querying marts.orders"},
		{tool.RunSQL, `{"sql":"SELECT 1"}`, "executing query"},
		{tool.RunCode, `{"queries":{"a":"x","b":"y"}}`, "processing 2 input(s)"},
		{tool.InspectSchema, `{"action":"get_columns","table":"orders"}`, "get_columns on orders"},
		{tool.InspectSchema, `{"action":"list_tables"}`, "list_tables"},
		{tool.SubmitResult, `{"inputs":{"a":"x"}}`, "computing from 1 input(s)"},
		{tool.SendMessage, `{"message":"short"}`, "short"},
		{tool.SendMessage, `{"message":"` + strings.Repeat("m", 31) + `"}`, strings.Repeat("m", 27) + "..."},
		{tool.ReadContext, `{}`, "checking notes"},
		{tool.UpdateContext, `{"section":"notes"}`, "updating notes"},
		{tool.SubmitObservation, `{"observation":"` + strings.Repeat("o", 41) + `"}`, strings.Repeat("o", 37) + "..."},
		{tool.RenderArtifact, `{"filename":"chart.html"}`, "creating chart.html"},
		{"custom_tool", `{}`, ""},
		{tool.RunSQL, `not json`, "executing query"},
	}
	for _, tc := range testCases {
		t.Run(tc.name+" "+tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tool.Summarize(tc.name, tc.args))
		})
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "EvalError", tool.ErrorKind(errors.Wrapf(&sandbox.ExecError{Kind: "EvalError", Message: "x"}, "run")))
	assert.Equal(t, "Cancelled", tool.ErrorKind(context.Canceled))
	assert.Equal(t, "Error", tool.ErrorKind(errors.New("x")))
}

// Package display renders agent activity and final answers on a terminal.
package display

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/habiliai/dataagent/internal/stringutils"
	"github.com/habiliai/dataagent/sandbox"
	"github.com/habiliai/dataagent/tool"
	"github.com/habiliai/dataagent/warehouse"
	"github.com/samber/lo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	previewLines   = 3
	summaryLimit   = 60
	maxResultRows  = 50
	defaultToolTag = "!"
	Divider        = "* . * . * . * . * . * . * . * . * . * . * . * . * . * . *"
)

var toolIcons = map[string]string{
	tool.RunSQL:            ">",
	tool.RunCode:           "#",
	tool.InspectSchema:     "?",
	tool.InspectPlatform:   "%",
	tool.ReadContext:       "<",
	tool.UpdateContext:     "+",
	tool.SubmitResult:      "*",
	tool.SubmitObservation: "~",
	tool.RenderArtifact:    "@",
	tool.SendMessage:       "-",
}

var numbers = message.NewPrinter(language.English)

// Console writes styled output to w. It is safe for concurrent use.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	styles  styles
	verbose bool
}

type Option func(*Console)

// WithVerbose shows full tool results instead of previews.
func WithVerbose(verbose bool) Option {
	return func(c *Console) {
		c.verbose = verbose
	}
}

func NewConsole(w io.Writer, opts ...Option) *Console {
	c := &Console{
		w:      w,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Console) SetVerbose(verbose bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verbose = verbose
}

func (c *Console) Verbose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verbose
}

func (c *Console) println(lines ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range lines {
		_, _ = fmt.Fprintln(c.w, line)
	}
}

func (c *Console) panel(style lipgloss.Style, title, body string) string {
	box := style.Render(body)
	if title == "" {
		return box
	}
	return c.styles.panelTitle.Render(title) + "\n" + box
}

func (c *Console) Info(msg string) {
	c.println(c.styles.info.Render(msg))
}

func (c *Console) Success(msg string) {
	c.println(c.styles.success.Render(msg))
}

func (c *Console) Warning(msg string) {
	c.println(c.styles.warning.Render(msg))
}

func (c *Console) Error(msg string) {
	c.println(c.styles.error.Render("ERROR: " + msg))
}

func (c *Console) Title(msg string) {
	c.println(c.styles.title.Render(msg))
}

func (c *Console) Dim(msg string) {
	c.println(c.styles.dim.Render(msg))
}

// Print writes text without styling.
func (c *Console) Print(text string) {
	c.println(text)
}

// Prompt writes the input prompt without a trailing newline.
func (c *Console) Prompt(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprint(c.w, c.styles.title.Render(label)+" ")
}

func (c *Console) Thinking(msg string) {
	c.println(c.styles.thinking.Render(msg))
}

// Reasoning shows model text that did not come with a final answer.
func (c *Console) Reasoning(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	c.println("", c.styles.thinking.Render(text), "")
}

func (c *Console) Message(text string) {
	c.println("", c.styles.info.Render(text), "")
}

// Retrieval shows what memory contributed to the prompt.
func (c *Console) Retrieval(summary string) {
	c.println(c.styles.dim.Render("  memory: " + summary))
}

func displayName(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func icon(name string) string {
	if i, ok := toolIcons[name]; ok {
		return i
	}
	return defaultToolTag
}

func (c *Console) ToolCall(name, summary string) {
	line := fmt.Sprintf("  %s %s", icon(name), c.styles.toolName.Render(displayName(name)))
	if summary != "" {
		line += " " + c.styles.toolArg.Render("· "+stringutils.Ellipsis(summary, summaryLimit, summaryLimit-3))
	}
	c.println(line)
}

// ToolResult previews the first lines of an internal tool result.
func (c *Console) ToolResult(name, text string) {
	preview := text
	if !c.Verbose() {
		lines := strings.Split(text, "\n")
		if len(lines) > previewLines {
			preview = strings.Join(lines[:previewLines], "\n") +
				"\n" + c.styles.dim.Render(fmt.Sprintf("... (%d more lines)", len(lines)-previewLines))
		}
	}
	c.println(c.panel(c.styles.dimPanel, c.styles.dim.Render(icon(name)+" Result"), preview))
}

func (c *Console) ToolError(name, text string) {
	c.println(c.styles.error.Render(fmt.Sprintf("  ✗ %s: %s", displayName(name), text)))
}

// ComputedAnswer shows a submit_result payload, or its error panel.
func (c *Console) ComputedAnswer(answer *tool.ComputedAnswer) {
	if !answer.Success {
		lines := []string{c.panel(c.styles.errorPanel, c.styles.error.Render("Execution Failed"), c.styles.error.Render(answer.Error))}
		if answer.FunctionCode != "" {
			lines = append(lines, c.functionPanel(answer.FunctionCode))
		}
		c.println(lines...)
		return
	}

	lines := []string{"", c.styles.info.Render(answer.Explanation), "", c.styles.title.Render("SQL Inputs:")}
	for _, name := range sortedNames(answer.InputsUsed) {
		lines = append(lines, fmt.Sprintf("  %s: %s rows", c.styles.name.Render(name), numbers.Sprintf("%d", answer.InputsUsed[name].Len())))
	}
	lines = append(lines, "", c.functionPanel(answer.FunctionCode), "")
	if answer.Printed != "" {
		lines = append(lines, c.styles.dim.Render(strings.TrimRight(answer.Printed, "\n")))
	}
	if answer.Result != nil {
		lines = append(lines, c.value(*answer.Result))
	}
	c.println(lines...)
}

func (c *Console) functionPanel(code string) string {
	return c.panel(c.styles.codePanel, c.styles.warning.Render("Function Applied"), code)
}

func (c *Console) value(v sandbox.Value) string {
	switch v.Kind {
	case sandbox.KindNumber:
		return c.panel(c.styles.resultPanel, c.styles.success.Render("Result"), c.styles.success.Render(FormatNumber(v)))
	case sandbox.KindTable:
		return c.table(v.Table)
	case sandbox.KindMapping:
		if m, ok := v.Native.(map[string]any); ok {
			return c.mapping(m)
		}
	case sandbox.KindList:
		if t := recordsTable(v.Native); t != nil {
			return c.table(t)
		}
	}
	return c.panel(c.styles.resultPanel, c.styles.success.Render("Result"), v.String())
}

// FormatNumber renders integers with separators and other numbers with two decimals.
func FormatNumber(v sandbox.Value) string {
	if math.IsNaN(v.Number) || math.IsInf(v.Number, 0) {
		return v.String()
	}
	if !strings.ContainsAny(v.String(), ".eE") && v.Number == math.Trunc(v.Number) && math.Abs(v.Number) < 1e15 {
		return numbers.Sprintf("%d", int64(v.Number))
	}
	return numbers.Sprintf("%.2f", v.Number)
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return numbers.Sprintf("%d", int64(val))
		}
		return numbers.Sprintf("%.2f", val)
	case float32:
		return numbers.Sprintf("%.2f", val)
	case int, int32, int64:
		return numbers.Sprintf("%d", val)
	default:
		return warehouse.FormatValue(v)
	}
}

func (c *Console) table(t *warehouse.Table) string {
	shown := t
	if t.Len() > maxResultRows {
		shown = t.Head(maxResultRows)
	}

	rows := make([][]string, 0, shown.Len())
	for _, row := range shown.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		rows = append(rows, cells)
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(c.styles.dim).
		Headers(t.Columns...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return c.styles.header
			}
			return c.styles.cell
		})

	footer := numbers.Sprintf("%d rows", t.Len())
	if shown != t {
		footer = numbers.Sprintf("showing %d of %d rows", shown.Len(), t.Len())
	}
	return tbl.Render() + "\n" + c.styles.info.Render(footer)
}

func (c *Console) mapping(m map[string]any) string {
	keys := sortedNames(m)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, formatCell(m[k])})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(c.styles.dim).
		Headers("Key", "Value").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return c.styles.header
			}
			return c.styles.cell
		}).
		Render()
}

// recordsTable turns a list of mappings into a table, or returns nil.
func recordsTable(native any) *warehouse.Table {
	list, ok := native.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return nil
	}

	columns := sortedNames(first)

	t := &warehouse.Table{Columns: columns}
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil
		}
		row := make([]any, len(columns))
		for i, col := range columns {
			row[i] = m[col]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func (c *Console) Observation(answer *tool.ObservationAnswer) {
	lines := []string{"", c.panel(c.styles.resultPanel.Padding(1, 2), c.styles.success.Render("Observation"), answer.Observation)}

	if len(answer.SupportingQueries) > 0 {
		var sb strings.Builder
		for i, desc := range sortedNames(answer.SupportingQueries) {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(c.styles.title.Render(desc+":") + "\n" + c.styles.dim.Render(answer.SupportingQueries[desc]))
		}
		lines = append(lines, "", c.panel(c.styles.codePanel, c.styles.warning.Render("Queries Used"), sb.String()))
	}
	if answer.SupportingData != "" {
		lines = append(lines, "", c.panel(c.styles.dimPanel, c.styles.dim.Render("Supporting Data"), answer.SupportingData))
	}
	lines = append(lines, Divider)
	c.println(lines...)
}

func (c *Console) Artifact(out *tool.ArtifactOutput) {
	if !out.Success {
		c.println("", c.panel(c.styles.errorPanel, c.styles.error.Render("Render Failed"), c.styles.error.Render(out.Error)))
		return
	}
	c.println(
		"",
		c.styles.info.Render(out.Explanation),
		"",
		c.panel(c.styles.resultPanel, c.styles.success.Render("Visualization Running"),
			c.styles.success.Render(out.URL)+"\n\n"+c.styles.dim.Render("Opened in browser. Server running in background.")),
	)
}

func sortedNames[V any](m map[string]V) []string {
	names := lo.Keys(m)
	slices.Sort(names)
	return names
}

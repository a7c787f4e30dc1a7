package sandbox

import (
	"fmt"
	"slices"
	"strings"

	"github.com/habiliai/dataagent/warehouse"
	"go.starlark.net/starlark"
)

// Frame exposes a query result to restricted code. Frames are immutable:
// every method returns a new frame.
type Frame struct {
	table *warehouse.Table
}

var (
	_ starlark.Value    = (*Frame)(nil)
	_ starlark.HasAttrs = (*Frame)(nil)
	_ starlark.Mapping  = (*Frame)(nil)
	_ starlark.Sequence = (*Frame)(nil)
)

func NewFrame(table *warehouse.Table) *Frame {
	if table == nil {
		table = &warehouse.Table{}
	}
	return &Frame{table: table}
}

func (f *Frame) Table() *warehouse.Table { return f.table }

func (f *Frame) String() string        { return f.table.String() }
func (f *Frame) Type() string          { return "frame" }
func (f *Frame) Freeze()               {}
func (f *Frame) Truth() starlark.Bool  { return starlark.Bool(!f.table.Empty()) }
func (f *Frame) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: frame") }
func (f *Frame) Len() int              { return f.table.Len() }

func (f *Frame) Iterate() starlark.Iterator {
	return &frameIterator{frame: f}
}

// Get implements frame["column"].
func (f *Frame) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("frame index must be a column name, got %s", k.Type())
	}
	col, err := f.column(name)
	if err != nil {
		return nil, false, err
	}
	return col, true, nil
}

type frameIterator struct {
	frame *Frame
	i     int
}

func (it *frameIterator) Next(p *starlark.Value) bool {
	if it.i >= it.frame.table.Len() {
		return false
	}
	*p = it.frame.rowDict(it.i)
	it.i++
	return true
}

func (it *frameIterator) Done() {}

func (f *Frame) column(name string) (*Column, error) {
	idx := f.table.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("no column %q (columns: %s)", name, strings.Join(f.table.Columns, ", "))
	}
	values := make([]any, len(f.table.Rows))
	for i, row := range f.table.Rows {
		values[i] = row[idx]
	}
	return &Column{name: name, values: values}, nil
}

func (f *Frame) rowDict(i int) *starlark.Dict {
	d := starlark.NewDict(len(f.table.Columns))
	for j, c := range f.table.Columns {
		_ = d.SetKey(starlark.String(c), toStarlark(f.table.Rows[i][j]))
	}
	return d
}

func (f *Frame) AttrNames() []string {
	names := []string{"columns", "shape"}
	for name := range frameMethods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (f *Frame) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		cols := make([]starlark.Value, len(f.table.Columns))
		for i, c := range f.table.Columns {
			cols[i] = starlark.String(c)
		}
		return starlark.NewList(cols), nil
	case "shape":
		return starlark.Tuple{starlark.MakeInt(f.table.Len()), starlark.MakeInt(len(f.table.Columns))}, nil
	}

	if fn, ok := frameMethods[name]; ok {
		return method(name, f, func(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return fn(f, thread, args, kwargs)
		}), nil
	}
	return nil, nil
}

type frameMethod func(f *Frame, thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

var frameMethods map[string]frameMethod

func init() {
	frameMethods = map[string]frameMethod{
		"head":        frameHead,
		"tail":        frameTail,
		"col":         frameCol,
		"row":         frameRow,
		"records":     frameRecords,
		"select":      frameSelect,
		"sort_by":     frameSortBy,
		"filter":      frameFilter,
		"group_by":    frameGroupBy,
		"with_column": frameWithColumn,
		"to_string":   frameToString,
	}
}

func frameHead(f *Frame, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs("head", args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	return NewFrame(f.table.Head(n)), nil
}

func frameTail(f *Frame, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs("tail", args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	rows := f.table.Rows
	if n < len(rows) {
		rows = rows[len(rows)-max(n, 0):]
	}
	return NewFrame(&warehouse.Table{Columns: f.table.Columns, Rows: rows}), nil
}

func frameCol(f *Frame, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs("col", args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	return f.column(name)
}

func frameRow(f *Frame, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var i int
	if err := starlark.UnpackPositionalArgs("row", args, kwargs, 1, &i); err != nil {
		return nil, err
	}
	if i < 0 {
		i += f.table.Len()
	}
	if i < 0 || i >= f.table.Len() {
		return nil, fmt.Errorf("row index %d out of range (%d rows)", i, f.table.Len())
	}
	return f.rowDict(i), nil
}

func frameRecords(f *Frame, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs("records", args, kwargs, 0); err != nil {
		return nil, err
	}
	rows := make([]starlark.Value, f.table.Len())
	for i := range rows {
		rows[i] = f.rowDict(i)
	}
	return starlark.NewList(rows), nil
}

func frameToString(f *Frame, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs("to_string", args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.String(f.table.String()), nil
}

func frameSelect(f *Frame, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("select: unexpected keyword arguments")
	}
	names, err := stringArgs("select", args)
	if err != nil {
		return nil, err
	}
	return f.project(names)
}

func (f *Frame) project(names []string) (*Frame, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		idx[i] = f.table.ColumnIndex(name)
		if idx[i] < 0 {
			return nil, fmt.Errorf("no column %q (columns: %s)", name, strings.Join(f.table.Columns, ", "))
		}
	}

	rows := make([][]any, len(f.table.Rows))
	for r, row := range f.table.Rows {
		out := make([]any, len(idx))
		for i, j := range idx {
			out[i] = row[j]
		}
		rows[r] = out
	}
	return NewFrame(&warehouse.Table{Columns: names, Rows: rows}), nil
}

func frameSortBy(f *Frame, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		by      starlark.Value
		reverse bool
	)
	if err := starlark.UnpackArgs("sort_by", args, kwargs, "by", &by, "reverse?", &reverse); err != nil {
		return nil, err
	}
	names, err := oneOrMany("sort_by", by)
	if err != nil {
		return nil, err
	}

	idx := make([]int, len(names))
	for i, name := range names {
		if idx[i] = f.table.ColumnIndex(name); idx[i] < 0 {
			return nil, fmt.Errorf("sort_by: no column %q", name)
		}
	}

	rows := slices.Clone(f.table.Rows)
	slices.SortStableFunc(rows, func(a, b []any) int {
		for _, j := range idx {
			c := compareValues(a[j], b[j])
			if c == 0 {
				continue
			}
			// NULL stays last in both directions
			if reverse && a[j] != nil && b[j] != nil {
				return -c
			}
			return c
		}
		return 0
	})
	return NewFrame(&warehouse.Table{Columns: f.table.Columns, Rows: rows}), nil
}

func frameFilter(f *Frame, thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	if err := starlark.UnpackPositionalArgs("filter", args, kwargs, 1, &fn); err != nil {
		return nil, err
	}

	var rows [][]any
	for i, row := range f.table.Rows {
		keep, err := starlark.Call(thread, fn, starlark.Tuple{f.rowDict(i)}, nil)
		if err != nil {
			return nil, err
		}
		if keep.Truth() {
			rows = append(rows, row)
		}
	}
	return NewFrame(&warehouse.Table{Columns: f.table.Columns, Rows: rows}), nil
}

// frameGroupBy implements frame.group_by(by, {"column": "sum", ...}).
func frameGroupBy(f *Frame, _ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		by  starlark.Value
		agg *starlark.Dict
	)
	if err := starlark.UnpackArgs("group_by", args, kwargs, "by", &by, "agg", &agg); err != nil {
		return nil, err
	}
	keys, err := oneOrMany("group_by", by)
	if err != nil {
		return nil, err
	}

	keyIdx := make([]int, len(keys))
	for i, k := range keys {
		if keyIdx[i] = f.table.ColumnIndex(k); keyIdx[i] < 0 {
			return nil, fmt.Errorf("group_by: no column %q", k)
		}
	}

	type spec struct {
		column string
		idx    int
		fn     string
	}
	var specs []spec
	for _, item := range agg.Items() {
		column, ok := starlark.AsString(item[0])
		if !ok {
			return nil, fmt.Errorf("group_by: agg keys must be column names")
		}
		fn, ok := starlark.AsString(item[1])
		if !ok {
			return nil, fmt.Errorf("group_by: aggregation for %q must be a string", column)
		}
		idx := f.table.ColumnIndex(column)
		if idx < 0 {
			return nil, fmt.Errorf("group_by: no column %q", column)
		}
		specs = append(specs, spec{column: column, idx: idx, fn: fn})
	}

	var (
		order  []string
		groups = map[string][]int{}
	)
	for r, row := range f.table.Rows {
		parts := make([]string, len(keyIdx))
		for i, j := range keyIdx {
			parts[i] = fmt.Sprintf("%T:%v", row[j], row[j])
		}
		key := strings.Join(parts, "\x00")
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	columns := slices.Clone(keys)
	for _, s := range specs {
		columns = append(columns, s.column)
	}

	rows := make([][]any, 0, len(order))
	for _, key := range order {
		members := groups[key]
		first := f.table.Rows[members[0]]
		out := make([]any, 0, len(columns))
		for _, j := range keyIdx {
			out = append(out, first[j])
		}
		for _, s := range specs {
			values := make([]any, len(members))
			for i, r := range members {
				values[i] = f.table.Rows[r][s.idx]
			}
			v, err := aggregate(s.fn, s.column, values)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		rows = append(rows, out)
	}

	return NewFrame(&warehouse.Table{Columns: columns, Rows: rows}), nil
}

// frameWithColumn adds or replaces a column from a list or a function of the row.
func frameWithColumn(f *Frame, thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name   string
		source starlark.Value
	)
	if err := starlark.UnpackPositionalArgs("with_column", args, kwargs, 2, &name, &source); err != nil {
		return nil, err
	}

	values := make([]any, f.table.Len())
	switch src := source.(type) {
	case starlark.Callable:
		for i := range values {
			v, err := starlark.Call(thread, src, starlark.Tuple{f.rowDict(i)}, nil)
			if err != nil {
				return nil, err
			}
			values[i] = fromStarlark(v)
		}
	case starlark.Indexable:
		if src.Len() != len(values) {
			return nil, fmt.Errorf("with_column: got %d values for %d rows", src.Len(), len(values))
		}
		for i := range values {
			values[i] = fromStarlark(src.Index(i))
		}
	default:
		return nil, fmt.Errorf("with_column: expected a list or a function, got %s", source.Type())
	}

	columns := slices.Clone(f.table.Columns)
	idx := f.table.ColumnIndex(name)
	if idx < 0 {
		columns = append(columns, name)
	}
	rows := make([][]any, len(f.table.Rows))
	for r, row := range f.table.Rows {
		out := slices.Clone(row)
		if idx < 0 {
			out = append(out, values[r])
		} else {
			out[idx] = values[r]
		}
		rows[r] = out
	}
	return NewFrame(&warehouse.Table{Columns: columns, Rows: rows}), nil
}

func stringArgs(fnName string, args starlark.Tuple) ([]string, error) {
	if len(args) == 1 {
		if _, ok := args[0].(starlark.String); !ok {
			return oneOrMany(fnName, args[0])
		}
	}
	out := make([]string, len(args))
	for i, a := range args {
		s, ok := starlark.AsString(a)
		if !ok {
			return nil, fmt.Errorf("%s: expected column names, got %s", fnName, a.Type())
		}
		out[i] = s
	}
	return out, nil
}

func oneOrMany(fnName string, v starlark.Value) ([]string, error) {
	if s, ok := starlark.AsString(v); ok {
		return []string{s}, nil
	}
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("%s: expected a column name or a list of names, got %s", fnName, v.Type())
	}

	var out []string
	iter := iterable.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		s, ok := starlark.AsString(x)
		if !ok {
			return nil, fmt.Errorf("%s: expected column names, got %s", fnName, x.Type())
		}
		out = append(out, s)
	}
	return out, nil
}

package sandbox

import (
	"fmt"
	"math"
	"slices"

	"github.com/habiliai/dataagent/warehouse"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"
)

// numModule holds the numeric helpers available as `num`.
var numModule = &starlarkstruct.Module{
	Name: "num",
	Members: starlark.StringDict{
		"sum":        reducer("sum", floats.Sum),
		"mean":       reducer("mean", mean),
		"median":     reducer("median", median),
		"std":        reducer("std", stdDev),
		"var":        reducer("var", variance),
		"min":        reducer("min", minOf),
		"max":        reducer("max", maxOf),
		"percentile": starlark.NewBuiltin("percentile", numPercentile),
		"cumsum":     starlark.NewBuiltin("cumsum", numCumsum),
		"corr":       starlark.NewBuiltin("corr", numCorr),
		"round":      starlark.NewBuiltin("round", numRound),
		"abs":        starlark.NewBuiltin("abs", numAbs),
		"pct_change": starlark.NewBuiltin("pct_change", numPctChange),
	},
}

// frameModule builds and joins frames, available as `frame`.
var frameModule = &starlarkstruct.Module{
	Name: "frame",
	Members: starlark.StringDict{
		"new":          starlark.NewBuiltin("new", frameNew),
		"from_records": starlark.NewBuiltin("from_records", frameFromRecords),
		"merge":        starlark.NewBuiltin("merge", frameMerge),
	},
}

func minOf(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return floats.Min(xs)
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return floats.Max(xs)
}

func reducer(name string, fn func([]float64) float64) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var xs starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &xs); err != nil {
			return nil, err
		}
		values, err := starNumbers(b.Name(), xs)
		if err != nil {
			return nil, err
		}
		return starlark.Float(fn(values)), nil
	})
}

func numPercentile(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		xs starlark.Value
		p  starlark.FloatOrInt
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &xs, &p); err != nil {
		return nil, err
	}
	values, err := starNumbers(b.Name(), xs)
	if err != nil {
		return nil, err
	}
	v, err := percentile(values, float64(p))
	if err != nil {
		return nil, err
	}
	return starlark.Float(v), nil
}

func numCumsum(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var xs starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &xs); err != nil {
		return nil, err
	}
	values, err := starNumbers(b.Name(), xs)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(values))
	if len(values) > 0 {
		floats.CumSum(out, values)
	}
	elems := make([]starlark.Value, len(out))
	for i, v := range out {
		elems[i] = starlark.Float(v)
	}
	return starlark.NewList(elems), nil
}

func numCorr(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var xs, ys starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &xs, &ys); err != nil {
		return nil, err
	}
	x, err := starNumbers(b.Name(), xs)
	if err != nil {
		return nil, err
	}
	y, err := starNumbers(b.Name(), ys)
	if err != nil {
		return nil, err
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("corr: length mismatch %d != %d", len(x), len(y))
	}
	if len(x) < 2 {
		return starlark.Float(math.NaN()), nil
	}
	return starlark.Float(stat.Correlation(x, y, nil)), nil
}

func numRound(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		x      starlark.FloatOrInt
		digits int
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x", &x, "ndigits?", &digits); err != nil {
		return nil, err
	}
	return starlark.Float(scalar.Round(float64(x), digits)), nil
}

func numAbs(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
		return nil, err
	}
	if i, ok := x.(starlark.Int); ok {
		if i.Sign() < 0 {
			return starlark.MakeInt(0).Sub(i), nil
		}
		return i, nil
	}
	f, ok := starlark.AsFloat(x)
	if !ok {
		return nil, fmt.Errorf("abs: expected a number, got %s", x.Type())
	}
	return starlark.Float(math.Abs(f)), nil
}

// numPctChange returns (new - old) / old * 100.
func numPctChange(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var prev, next starlark.FloatOrInt
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &prev, &next); err != nil {
		return nil, err
	}
	if prev == 0 {
		return starlark.None, nil
	}
	return starlark.Float(float64(next-prev) / float64(prev) * 100), nil
}

// frameNew builds a frame from a dict of column name to list of values.
func frameNew(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var data *starlark.Dict
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &data); err != nil {
		return nil, err
	}

	table := &warehouse.Table{}
	var columns [][]any
	for _, item := range data.Items() {
		name, ok := starlark.AsString(item[0])
		if !ok {
			return nil, fmt.Errorf("new: column names must be strings")
		}
		values, ok := item[1].(starlark.Indexable)
		if !ok {
			return nil, fmt.Errorf("new: column %q must be a list", name)
		}
		col := make([]any, values.Len())
		for i := range col {
			col[i] = fromStarlark(values.Index(i))
		}
		if len(columns) > 0 && len(col) != len(columns[0]) {
			return nil, fmt.Errorf("new: column %q has %d values, expected %d", name, len(col), len(columns[0]))
		}
		table.Columns = append(table.Columns, name)
		columns = append(columns, col)
	}

	if len(columns) > 0 {
		table.Rows = make([][]any, len(columns[0]))
		for r := range table.Rows {
			row := make([]any, len(columns))
			for c := range columns {
				row[c] = columns[c][r]
			}
			table.Rows[r] = row
		}
	}
	return NewFrame(table), nil
}

// frameFromRecords builds a frame from a list of dicts; columns follow first appearance.
func frameFromRecords(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var records starlark.Iterable
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &records); err != nil {
		return nil, err
	}

	var (
		columns []string
		dicts   []*starlark.Dict
	)
	iter := records.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		d, ok := x.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("from_records: expected dicts, got %s", x.Type())
		}
		for _, k := range d.Keys() {
			name := keyString(k)
			if !slices.Contains(columns, name) {
				columns = append(columns, name)
			}
		}
		dicts = append(dicts, d)
	}

	table := &warehouse.Table{Columns: columns, Rows: make([][]any, len(dicts))}
	for r, d := range dicts {
		row := make([]any, len(columns))
		for c, name := range columns {
			if v, found, _ := d.Get(starlark.String(name)); found {
				row[c] = fromStarlark(v)
			}
		}
		table.Rows[r] = row
	}
	return NewFrame(table), nil
}

// frameMerge joins two frames on a shared column; how is "inner" or "left".
func frameMerge(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		left, right *Frame
		on          string
		how         = "inner"
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "left", &left, "right", &right, "on", &on, "how?", &how); err != nil {
		return nil, err
	}
	if how != "inner" && how != "left" {
		return nil, fmt.Errorf("merge: how must be \"inner\" or \"left\", got %q", how)
	}

	li := left.table.ColumnIndex(on)
	ri := right.table.ColumnIndex(on)
	if li < 0 || ri < 0 {
		return nil, fmt.Errorf("merge: column %q must exist in both frames", on)
	}

	columns := slices.Clone(left.table.Columns)
	var rightCols []int
	for j, c := range right.table.Columns {
		if j == ri {
			continue
		}
		name := c
		if slices.Contains(columns, name) {
			name += "_right"
		}
		columns = append(columns, name)
		rightCols = append(rightCols, j)
	}

	index := map[string][]int{}
	for r, row := range right.table.Rows {
		key := joinKey(row[ri])
		index[key] = append(index[key], r)
	}

	var rows [][]any
	for _, lrow := range left.table.Rows {
		matches := index[joinKey(lrow[li])]
		if lrow[li] == nil {
			matches = nil
		}
		if len(matches) == 0 && how == "left" {
			rows = append(rows, append(slices.Clone(lrow), make([]any, len(rightCols))...))
			continue
		}
		for _, r := range matches {
			out := slices.Clone(lrow)
			for _, j := range rightCols {
				out = append(out, right.table.Rows[r][j])
			}
			rows = append(rows, out)
		}
	}

	return NewFrame(&warehouse.Table{Columns: columns, Rows: rows}), nil
}

// joinKey lets int64(1) and float64(1) match, as keys from different engines often differ in type.
func joinKey(v any) string {
	if f, ok := toFloat(v); ok {
		return fmt.Sprintf("n:%g", f)
	}
	return "s:" + warehouse.FormatValue(v)
}

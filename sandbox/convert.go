package sandbox

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/habiliai/dataagent/warehouse"
	"github.com/samber/lo"
	"go.starlark.net/starlark"
)

// toStarlark converts a warehouse cell or a plain Go value.
func toStarlark(v any) starlark.Value {
	switch val := v.(type) {
	case nil:
		return starlark.None
	case starlark.Value:
		return val
	case bool:
		return starlark.Bool(val)
	case int:
		return starlark.MakeInt(val)
	case int64:
		return starlark.MakeInt64(val)
	case float64:
		return starlark.Float(val)
	case string:
		return starlark.String(val)
	case time.Time:
		return starlark.String(warehouse.FormatValue(val))
	case []any:
		elems := make([]starlark.Value, len(val))
		for i, e := range val {
			elems[i] = toStarlark(e)
		}
		return starlark.NewList(elems)
	case map[string]any:
		keys := lo.Keys(val)
		slices.Sort(keys)
		d := starlark.NewDict(len(val))
		for _, k := range keys {
			_ = d.SetKey(starlark.String(k), toStarlark(val[k]))
		}
		return d
	default:
		return starlark.String(fmt.Sprint(val))
	}
}

// fromStarlark converts a starlark value into a cell value or a JSON-friendly Go value.
func fromStarlark(v starlark.Value) any {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil
	case starlark.Bool:
		return bool(val)
	case starlark.Int:
		if i, ok := val.Int64(); ok {
			return i
		}
		f, _ := starlark.AsFloat(val)
		return f
	case starlark.Float:
		return float64(val)
	case starlark.String:
		return string(val)
	case *Frame:
		return val.table.Records()
	case *Column:
		return append([]any(nil), val.values...)
	case *starlark.List:
		out := make([]any, val.Len())
		for i := range out {
			out[i] = fromStarlark(val.Index(i))
		}
		return out
	case starlark.Tuple:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = fromStarlark(e)
		}
		return out
	case *starlark.Dict:
		out := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			out[keyString(item[0])] = fromStarlark(item[1])
		}
		return out
	default:
		return v.String()
	}
}

func keyString(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}

// toFloat reads a numeric cell; ok is false for NULL and non-numeric values.
func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	case float64:
		return val, !math.IsNaN(val)
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// starNumbers reads a list, tuple or column of numbers, skipping None.
func starNumbers(fnName string, v starlark.Value) ([]float64, error) {
	if col, ok := v.(*Column); ok {
		return col.numbers()
	}

	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("%s: expected a list or column, got %s", fnName, v.Type())
	}

	var out []float64
	iter := iterable.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		if x == starlark.None {
			continue
		}
		f, ok := starlark.AsFloat(x)
		if !ok {
			return nil, fmt.Errorf("%s: expected numbers, got %s", fnName, x.Type())
		}
		out = append(out, f)
	}
	return out, nil
}

// compareValues orders cells: NULL last, numbers numerically, everything else as text.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}

	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}

	return strings.Compare(warehouse.FormatValue(a), warehouse.FormatValue(b))
}

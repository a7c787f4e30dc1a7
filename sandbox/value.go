package sandbox

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/habiliai/dataagent/warehouse"
	"go.starlark.net/starlark"
)

type Kind string

const (
	KindNumber  Kind = "number"
	KindText    Kind = "text"
	KindTable   Kind = "table"
	KindMapping Kind = "mapping"
	KindList    Kind = "list"
	KindBool    Kind = "bool"
	KindNone    Kind = "none"
)

// Value is the `result` binding of a finished program.
type Value struct {
	Kind   Kind
	Number float64
	Text   string
	Table  *warehouse.Table
	// Native holds mappings, lists and booleans as plain Go values.
	Native any

	repr string
}

func newValue(v starlark.Value) Value {
	switch val := v.(type) {
	case starlark.NoneType:
		return Value{Kind: KindNone, repr: "None"}
	case starlark.Bool:
		return Value{Kind: KindBool, Native: bool(val), repr: val.String()}
	case starlark.Int, starlark.Float:
		f, _ := starlark.AsFloat(val)
		return Value{Kind: KindNumber, Number: f, repr: formatNumber(val)}
	case starlark.String:
		return Value{Kind: KindText, Text: string(val), repr: string(val)}
	case *Frame:
		return Value{Kind: KindTable, Table: val.table, repr: val.table.String()}
	case *Column:
		table := &warehouse.Table{Columns: []string{val.name}, Rows: make([][]any, len(val.values))}
		for i, x := range val.values {
			table.Rows[i] = []any{x}
		}
		return Value{Kind: KindTable, Table: table, repr: table.String()}
	case *starlark.Dict:
		return Value{Kind: KindMapping, Native: fromStarlark(val), repr: val.String()}
	case *starlark.List, starlark.Tuple:
		return Value{Kind: KindList, Native: fromStarlark(val), repr: val.String()}
	default:
		return Value{Kind: KindText, Text: v.String(), repr: v.String()}
	}
}

func formatNumber(v starlark.Value) string {
	if i, ok := v.(starlark.Int); ok {
		return i.String()
	}
	f, _ := starlark.AsFloat(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// String is the text handed back to the model.
func (v Value) String() string {
	return v.repr
}

// JSON returns a value suitable for json.Marshal.
func (v Value) JSON() any {
	switch v.Kind {
	case KindNumber:
		if math.IsNaN(v.Number) || math.IsInf(v.Number, 0) {
			return nil
		}
		return v.Number
	case KindText:
		return v.Text
	case KindTable:
		return v.Table.Records()
	default:
		return v.Native
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.JSON())
}

package sandbox

import (
	"fmt"
	"strings"

	"github.com/habiliai/dataagent/warehouse"
	"go.starlark.net/starlark"
)

// Column is one named column of a frame.
type Column struct {
	name   string
	values []any
}

var (
	_ starlark.Value     = (*Column)(nil)
	_ starlark.HasAttrs  = (*Column)(nil)
	_ starlark.Indexable = (*Column)(nil)
	_ starlark.Sequence  = (*Column)(nil)
)

func (c *Column) String() string {
	parts := make([]string, len(c.values))
	for i, v := range c.values {
		parts[i] = warehouse.FormatValue(v)
	}
	return fmt.Sprintf("column(%s: [%s])", c.name, strings.Join(parts, ", "))
}

func (c *Column) Type() string          { return "column" }
func (c *Column) Freeze()               {}
func (c *Column) Truth() starlark.Bool  { return len(c.values) > 0 }
func (c *Column) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: column") }
func (c *Column) Len() int              { return len(c.values) }
func (c *Column) Index(i int) starlark.Value {
	return toStarlark(c.values[i])
}

func (c *Column) Iterate() starlark.Iterator {
	return &columnIterator{col: c}
}

type columnIterator struct {
	col *Column
	i   int
}

func (it *columnIterator) Next(p *starlark.Value) bool {
	if it.i >= len(it.col.values) {
		return false
	}
	*p = toStarlark(it.col.values[it.i])
	it.i++
	return true
}

func (it *columnIterator) Done() {}

func (c *Column) numbers() ([]float64, error) {
	return numbersOf(c.name, c.values)
}

var columnAggregations = []string{"sum", "mean", "median", "std", "var", "min", "max", "count", "nunique"}

func (c *Column) AttrNames() []string {
	return append([]string{"name", "unique", "tolist", "value_counts"}, columnAggregations...)
}

func (c *Column) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(c.name), nil
	case "unique":
		return method(name, c, func(*starlark.Thread, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
			return toStarlark(unique(c.values)), nil
		}), nil
	case "tolist":
		return method(name, c, func(*starlark.Thread, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
			return toStarlark(append([]any(nil), c.values...)), nil
		}), nil
	case "value_counts":
		return method(name, c, c.valueCounts), nil
	}

	for _, agg := range columnAggregations {
		if agg == name {
			return method(name, c, func(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				if err := starlark.UnpackPositionalArgs(name, args, kwargs, 0); err != nil {
					return nil, err
				}
				v, err := aggregate(name, c.name, c.values)
				if err != nil {
					return nil, err
				}
				return toStarlark(v), nil
			}), nil
		}
	}

	return nil, nil
}

// valueCounts returns a dict of value to occurrences, most frequent first.
func (c *Column) valueCounts(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs("value_counts", args, kwargs, 0); err != nil {
		return nil, err
	}

	values := unique(nonNull(c.values))
	counts := make([]int, len(values))
	for i, u := range values {
		for _, v := range c.values {
			if v != nil && compareValues(u, v) == 0 {
				counts[i]++
			}
		}
	}

	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && counts[order[j]] > counts[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}

	d := starlark.NewDict(len(values))
	for _, i := range order {
		if err := d.SetKey(toStarlark(values[i]), starlark.MakeInt(counts[i])); err != nil {
			return nil, err
		}
	}
	return d, nil
}

type methodFn func(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

func method(name string, recv starlark.Value, fn methodFn) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return fn(thread, args, kwargs)
	}).BindReceiver(recv)
}

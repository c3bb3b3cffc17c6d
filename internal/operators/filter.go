package operators

import "github.com/relstore/relstore/internal/core"

// FilterOp names a Filter predicate's comparison operator.
type FilterOp int

const (
	FilterEq FilterOp = iota
	FilterNe
	FilterGt
	FilterGe
	FilterLt
	FilterLe
)

// Filter wraps a child iterator and only yields tuples whose field at
// fieldIndex compares true against value under op.
type Filter struct {
	child      Iterator
	fieldIndex int
	op         FilterOp
	value      core.Field
}

func NewFilter(child Iterator, fieldIndex int, op FilterOp, value core.Field) *Filter {
	return &Filter{child: child, fieldIndex: fieldIndex, op: op, value: value}
}

func (f *Filter) Rewind() { f.child.Rewind() }

func (f *Filter) Next() (*core.Tuple, error) {
	for {
		t, err := f.child.Next()
		if err != nil || t == nil {
			return t, err
		}
		ok, err := f.matches(t)
		if err != nil {
			return nil, err
		}
		if ok {
			return t, nil
		}
	}
}

func (f *Filter) matches(t *core.Tuple) (bool, error) {
	c, err := core.CompareFields(t.Fields[f.fieldIndex], f.value)
	if err != nil {
		return false, err
	}
	switch f.op {
	case FilterEq:
		return c == 0, nil
	case FilterNe:
		return c != 0, nil
	case FilterGt:
		return c > 0, nil
	case FilterGe:
		return c >= 0, nil
	case FilterLt:
		return c < 0, nil
	case FilterLe:
		return c <= 0, nil
	default:
		return false, nil
	}
}

var _ Iterator = (*Filter)(nil)

package operators

import (
	"fmt"
	"math/big"

	"github.com/relstore/relstore/internal/core"
	"github.com/relstore/relstore/internal/storage"
)

// AggFunc names a supported aggregate function.
type AggFunc int

const (
	AggCount AggFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

// Aggregate consumes its entire child iterator on the first Next call and
// yields a single one-field result tuple holding the accumulated value;
// MIN and MAX over an empty child yield no tuple at all.
// SUM/AVG accumulate via the teacher's decimal helpers
// (internal/storage.DecimalAdd, backed by *big.Rat) rather than float64, to
// avoid drift across many rows.
type Aggregate struct {
	child      Iterator
	fieldIndex int
	fn         AggFunc
	outDesc    *core.TupleDesc

	done bool
}

func NewAggregate(child Iterator, fieldIndex int, fn AggFunc, outDesc *core.TupleDesc) *Aggregate {
	return &Aggregate{child: child, fieldIndex: fieldIndex, fn: fn, outDesc: outDesc}
}

func (a *Aggregate) Rewind() { a.child.Rewind(); a.done = false }

func (a *Aggregate) Next() (*core.Tuple, error) {
	if a.done {
		return nil, nil
	}
	a.done = true

	count := int32(0)
	sum := new(big.Rat)
	var min, max core.Field

	for {
		t, err := a.child.Next()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}
		count++
		f := t.Fields[a.fieldIndex]

		if a.fn == AggSum || a.fn == AggAvg {
			v, ok := fieldToDecimalOperand(f)
			if !ok {
				return nil, fmt.Errorf("aggregate: field %d is not numeric", a.fieldIndex)
			}
			next, err := storage.DecimalAdd(sum, v)
			if err != nil {
				return nil, fmt.Errorf("aggregate: %w", err)
			}
			sum = next
		}
		if a.fn == AggMin || a.fn == AggMax {
			if min == nil {
				min, max = f, f
				continue
			}
			c, err := core.CompareFields(f, min)
			if err != nil {
				return nil, err
			}
			if c < 0 {
				min = f
			}
			c, err = core.CompareFields(f, max)
			if err != nil {
				return nil, err
			}
			if c > 0 {
				max = f
			}
		}
	}

	switch a.fn {
	case AggCount:
		return core.NewTuple(a.outDesc, core.IntField{Value: count})
	case AggSum:
		rawSum, ok := storage.AsBigRat(sum)
		if !ok {
			return nil, fmt.Errorf("aggregate: accumulated sum is not a decimal")
		}
		return core.NewTuple(a.outDesc, core.IntField{Value: int32(ratToInt(rawSum))})
	case AggAvg:
		if count == 0 {
			return core.NewTuple(a.outDesc, core.IntField{Value: 0})
		}
		rawSum, ok := storage.AsBigRat(sum)
		if !ok {
			return nil, fmt.Errorf("aggregate: accumulated sum is not a decimal")
		}
		avg := new(big.Rat).Quo(rawSum, big.NewRat(int64(count), 1))
		return core.NewTuple(a.outDesc, core.IntField{Value: int32(ratToInt(avg))})
	case AggMin:
		if min == nil {
			return nil, nil
		}
		return core.NewTuple(a.outDesc, min)
	case AggMax:
		if max == nil {
			return nil, nil
		}
		return core.NewTuple(a.outDesc, max)
	default:
		return nil, fmt.Errorf("aggregate: unknown function")
	}
}

// fieldToDecimalOperand returns a value storage.DecimalFromAny can coerce
// to *big.Rat, or false if f isn't numeric.
func fieldToDecimalOperand(f core.Field) (any, bool) {
	switch v := f.(type) {
	case core.IntField:
		return int64(v.Value), true
	default:
		return nil, false
	}
}

func ratToInt(r *big.Rat) int64 {
	q := new(big.Int).Quo(r.Num(), r.Denom())
	return q.Int64()
}

var _ Iterator = (*Aggregate)(nil)

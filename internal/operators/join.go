package operators

import "github.com/relstore/relstore/internal/core"

// Join is a nested-loop equi-join: for each outer tuple it rewinds and
// scans the inner child, yielding the concatenation of outer and inner
// fields wherever outerField == innerField. Spec.md keeps join ordering
// out of scope beyond this one strategy.
type Join struct {
	outer, inner         Iterator
	outerField, innerField int
	outDesc              *core.TupleDesc

	curOuter *core.Tuple
}

func NewJoin(outer, inner Iterator, outerField, innerField int, outDesc *core.TupleDesc) *Join {
	return &Join{outer: outer, inner: inner, outerField: outerField, innerField: innerField, outDesc: outDesc}
}

func (j *Join) Rewind() {
	j.outer.Rewind()
	j.curOuter = nil
}

func (j *Join) Next() (*core.Tuple, error) {
	for {
		if j.curOuter == nil {
			ot, err := j.outer.Next()
			if err != nil || ot == nil {
				return ot, err
			}
			j.curOuter = ot
			j.inner.Rewind()
		}

		it, err := j.inner.Next()
		if err != nil {
			return nil, err
		}
		if it == nil {
			j.curOuter = nil
			continue
		}

		c, err := core.CompareFields(j.curOuter.Fields[j.outerField], it.Fields[j.innerField])
		if err != nil {
			return nil, err
		}
		if c != 0 {
			continue
		}

		fields := make([]core.Field, 0, len(j.curOuter.Fields)+len(it.Fields))
		fields = append(fields, j.curOuter.Fields...)
		fields = append(fields, it.Fields...)
		return core.NewTuple(j.outDesc, fields...)
	}
}

var _ Iterator = (*Join)(nil)

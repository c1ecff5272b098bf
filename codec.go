package rawmem

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/rawbytedev/rawmem/internal/common"
)

// Codec packs ordered lists of fixed-layout values into blobs and back.
// Type plans are cached, so one Codec is best reused; it is safe for
// concurrent use.
type Codec struct {
	Opts Options
	plan map[reflect.Type]*typePlan
	mu   sync.RWMutex
}

type typePlan struct {
	typ    reflect.Type
	size   int
	leaves []common.Leaf
	bools  []uintptr // offsets of bool leaves
	desc   string
}

// fixBools rewrites every bool byte of a raw copy to 0 or 1, so bytes that
// came from some other type still read as a valid bool.
func (p *typePlan) fixBools(b []byte) {
	for _, off := range p.bools {
		if b[off] != 0 {
			b[off] = 1
		}
	}
}

var defaultCodec = NewCodec(Options{})

func NewCodec(opts Options) *Codec {
	return &Codec{
		Opts: opts,
		plan: make(map[reflect.Type]*typePlan),
	}
}

func (c *Codec) getPlan(t reflect.Type) (*typePlan, error) {
	c.mu.RLock()
	if plan, ok := c.plan[t]; ok {
		c.mu.RUnlock()
		return plan, nil
	}
	c.mu.RUnlock()

	if !common.IsFixedLayout(t) {
		return nil, fmt.Errorf("%w: %s", ErrNotFixedLayout, t)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check
	if plan, ok := c.plan[t]; ok {
		return plan, nil
	}
	plan := &typePlan{
		typ:    t,
		size:   int(t.Size()),
		leaves: common.Leaves(t),
		desc:   common.Describe(t),
	}
	for _, leaf := range plan.leaves {
		if leaf.Type.Kind() == reflect.Bool {
			plan.bools = append(plan.bools, leaf.Offset)
		}
	}
	c.plan[t] = plan
	return plan, nil
}

// SizeOf returns the number of bytes Pack would produce for values.
func (c *Codec) SizeOf(values ...any) (int, error) {
	types := make([]reflect.Type, len(values))
	for i, v := range values {
		if v == nil {
			return 0, fmt.Errorf("%w: value %d is nil", ErrNotFixedLayout, i)
		}
		types[i] = reflect.TypeOf(v)
	}
	return c.SizeOfTypes(types...)
}

// SizeOfTypes returns the packed footprint of an ordered type list.
func (c *Codec) SizeOfTypes(types ...reflect.Type) (int, error) {
	if len(types) == 0 {
		return 0, ErrArgCount
	}
	total := 0
	if c.Opts.Signature {
		total = signatureSize
	}
	for _, t := range types {
		p, err := c.getPlan(t)
		if err != nil {
			return 0, err
		}
		total += p.size
	}
	return total, nil
}

// Signature returns the signature Pack would write for values' types.
func (c *Codec) Signature(values ...any) (uint32, error) {
	plans, err := c.valuePlans(values)
	if err != nil {
		return 0, err
	}
	return signatureOf(plans), nil
}

func (c *Codec) valuePlans(values []any) ([]*typePlan, error) {
	if len(values) == 0 {
		return nil, ErrArgCount
	}
	plans := make([]*typePlan, len(values))
	for i, v := range values {
		if v == nil {
			return nil, fmt.Errorf("%w: value %d is nil", ErrNotFixedLayout, i)
		}
		p, err := c.getPlan(reflect.TypeOf(v))
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		plans[i] = p
	}
	return plans, nil
}

func (c *Codec) outputPlans(outs []any) ([]*typePlan, error) {
	if len(outs) == 0 {
		return nil, ErrArgCount
	}
	plans := make([]*typePlan, len(outs))
	for i, out := range outs {
		rv := reflect.ValueOf(out)
		if rv.Kind() != reflect.Pointer || rv.IsNil() {
			return nil, fmt.Errorf("%w: output %d is %T", ErrNotPointer, i, out)
		}
		p, err := c.getPlan(rv.Type().Elem())
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		plans[i] = p
	}
	return plans, nil
}

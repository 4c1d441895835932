package table

// Column holds the typed cells of one named column together with the
// statistics observed when it was built.
type Column struct {
	name   string
	kind   Kind
	layout string
	values []Value

	min, max Value
	nulls    int
}

// NewColumn infers the kind of raws and parses every cell.
func NewColumn(name string, raws []string) *Column {
	kind, layout := InferKind(raws)
	values := make([]Value, len(raws))
	for i, raw := range raws {
		v, err := Parse(kind, layout, raw)
		if err != nil {
			// inference guarantees every non-missing cell parses
			v = Null(kind, raw)
		}
		values[i] = v
	}
	return newColumn(name, kind, layout, values)
}

func newColumn(name string, kind Kind, layout string, values []Value) *Column {
	c := &Column{
		name:   name,
		kind:   kind,
		layout: layout,
		values: values,
		min:    Null(kind, ""),
		max:    Null(kind, ""),
	}
	c.observe()
	return c
}

func (c *Column) observe() {
	first := true
	for _, v := range c.values {
		if v.IsNull() {
			c.nulls++
			continue
		}
		if first {
			c.min, c.max = v, v
			first = false
			continue
		}
		if Compare(v, c.min) < 0 {
			c.min = v
		}
		if Compare(v, c.max) > 0 {
			c.max = v
		}
	}
}

func (c *Column) Name() string { return c.name }
func (c *Column) Kind() Kind   { return c.kind }
func (c *Column) Len() int     { return len(c.values) }
func (c *Column) Nulls() int   { return c.nulls }

// Value returns the cell at row i.
func (c *Column) Value(i int) Value { return c.values[i] }

// Values returns the backing slice. Callers must not modify it.
func (c *Column) Values() []Value { return c.values }

// Min returns the smallest observed non-null value, or null when the column has none.
func (c *Column) Min() Value { return c.min }

// Max returns the largest observed non-null value, or null when the column has none.
func (c *Column) Max() Value { return c.max }

// Distinct returns the distinct non-null raw texts in order of first appearance.
func (c *Column) Distinct() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range c.values {
		if v.IsNull() {
			continue
		}
		if _, ok := seen[v.raw]; ok {
			continue
		}
		seen[v.raw] = struct{}{}
		out = append(out, v.raw)
	}
	return out
}

// ParseBound parses raw as a value comparable with this column's cells.
func (c *Column) ParseBound(raw string) (Value, error) {
	return Parse(c.kind, c.layout, raw)
}

func (c *Column) selectRows(indices []int) *Column {
	values := make([]Value, len(indices))
	for i, idx := range indices {
		values[i] = c.values[idx]
	}
	return newColumn(c.name, c.kind, c.layout, values)
}

package syncplus

// Void is the payload type of contexts that carry no value.
type Void = struct{}

// Cell holds zero or one value of T. It does no locking of its own: the
// context owning it decides when Ptr may be dereferenced.
type Cell[T any] struct {
	value   T
	present bool
}

// NewCell returns a cell holding v.
func NewCell[T any](v T) Cell[T] {
	return Cell[T]{value: v, present: true}
}

// EmptyCell returns a cell without a value.
func EmptyCell[T any]() Cell[T] {
	return Cell[T]{}
}

// Present reports whether the cell holds a value.
func (c *Cell[T]) Present() bool {
	return c.present
}

// Ptr returns a pointer to the held value, or nil if the cell is empty.
func (c *Cell[T]) Ptr() *T {
	if !c.present {
		return nil
	}
	return &c.value
}

// Set stores v and marks the cell present.
func (c *Cell[T]) Set(v T) {
	c.value = v
	c.present = true
}

// untyped returns the cell pointer as an untyped value, nil when empty.
// A typed nil pointer is never returned.
func (c *Cell[T]) untyped() any {
	if !c.present {
		return nil
	}
	return &c.value
}

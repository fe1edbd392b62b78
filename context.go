package syncplus

// Context is the type-erased face of a Monitor, Gate or RW. A Tree holds
// its nodes through it.
type Context interface {
	Name() string
	Kind() Kind
	// InvokeAny runs fn under the context's Invoke protection. v is the
	// cell pointer (*T) or nil when the cell is empty.
	InvokeAny(fn func(v any))
	Close() error
}

// Invoker is implemented by every context holding a T.
type Invoker[T any] interface {
	Invoke(fn func(v *T))
}

// storer sets a cell under protection, making an empty cell present.
type storer[T any] interface {
	store(v T)
}

var (
	_ Context         = (*Monitor[int])(nil)
	_ Context         = (*Gate[int])(nil)
	_ Context         = (*RW[int])(nil)
	_ Invoker[string] = (*Monitor[string])(nil)
	_ Invoker[string] = (*Gate[string])(nil)
	_ Invoker[string] = (*RW[string])(nil)
	_ storer[string]  = (*Monitor[string])(nil)
	_ storer[string]  = (*Gate[string])(nil)
	_ storer[string]  = (*RW[string])(nil)
)

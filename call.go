package syncplus

// Go methods cannot add type parameters, so the forms that return the
// callable's result are plain functions.

// Call runs fn through c.Invoke and returns its result.
func Call[T, R any](c Invoker[T], fn func(v *T) R) R {
	var r R
	c.Invoke(func(v *T) { r = fn(v) })
	return r
}

// CallWith is Call for a callable taking one extra argument.
//
//	sum := syncplus.CallWith(m, func(v *int, n int) int { *v += n; return *v }, 3)
func CallWith[T, A, R any](c Invoker[T], fn func(v *T, a A) R, a A) R {
	var r R
	c.Invoke(func(v *T) { r = fn(v, a) })
	return r
}

// MarcoCall runs fn through m.Marco and returns its result.
func MarcoCall[T, R any](m *Monitor[T], fn func(v *T) R) R {
	var r R
	m.Marco(func(v *T) { r = fn(v) })
	return r
}

// PoloCall runs fn through m.Polo and returns its result.
func PoloCall[T, R any](m *Monitor[T], fn func() R) R {
	var r R
	m.Polo(func() { r = fn() })
	return r
}

// ReadCall runs fn through rw.Read and returns its result.
func ReadCall[T, R any](rw *RW[T], fn func(v *T) R) R {
	var r R
	rw.Read(func(v *T) { r = fn(v) })
	return r
}

package syncplus

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Visit describes the node a broadcast or walk is at.
type Visit struct {
	Name  string
	Kind  Kind
	Depth int
	// Path holds the child indexes leading from the root to this node.
	// The root has an empty path.
	Path []int
	// Value is the node's cell pointer (*T), or nil when the cell is empty
	// or during a Walk.
	Value any
}

// Tree composes contexts into a hierarchy. Each node owns one Context and
// an ordered list of child trees. The shape is fixed at construction.
//
// Every traversal takes a node's protection before its children's, and
// releases it after them. Callers that only lock through a Tree therefore
// cannot deadlock against each other.
type Tree struct {
	ctx      Context
	children []*Tree
	parent   *Tree
}

// NewTree returns a node owning ctx and children, in order. It panics if ctx
// is nil, or if a child is nil or already belongs to another tree.
func NewTree(ctx Context, children ...*Tree) *Tree {
	if ctx == nil {
		panic("syncplus: tree node needs a context")
	}
	t := &Tree{ctx: ctx, children: make([]*Tree, 0, len(children))}
	for i, c := range children {
		if c == nil {
			panic(fmt.Sprintf("syncplus: child %d of %s is nil", i, ctx.Name()))
		}
		if c.parent != nil {
			panic(fmt.Sprintf("syncplus: %s already belongs to %s", c.ctx.Name(), c.parent.ctx.Name()))
		}
		c.parent = t
		t.children = append(t.children, c)
	}
	return t
}

// Context returns the node's own context.
func (t *Tree) Context() Context { return t.ctx }

// Children returns a copy of the node's children.
func (t *Tree) Children() []*Tree {
	out := make([]*Tree, len(t.children))
	copy(out, t.children)
	return out
}

// Len counts the nodes of t, t included.
func (t *Tree) Len() int {
	n := 1
	for _, c := range t.children {
		n += c.Len()
	}
	return n
}

func childPath(path []int, i int) []int {
	p := make([]int, len(path)+1)
	copy(p, path)
	p[len(path)] = i
	return p
}

// Invoke broadcasts fn over the tree in pre-order. fn runs on each node with
// that node's protection held, and the protection stays held while the
// node's children are visited.
func (t *Tree) Invoke(fn func(v Visit)) {
	t.broadcast(0, nil, fn)
}

func (t *Tree) broadcast(depth int, path []int, fn func(v Visit)) {
	t.ctx.InvokeAny(func(v any) {
		fn(Visit{Name: t.ctx.Name(), Kind: t.ctx.Kind(), Depth: depth, Path: path, Value: v})
		for i, c := range t.children {
			c.broadcast(depth+1, childPath(path, i), fn)
		}
	})
}

// InvokeErr is Invoke for callables that can fail. Every node is visited
// regardless of earlier failures; the errors are returned together.
func (t *Tree) InvokeErr(fn func(v Visit) error) error {
	var merr error
	t.Invoke(func(v Visit) {
		if err := fn(v); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", v.Name, err))
		}
	})
	return merr
}

// Walk calls fn for every node in pre-order without taking any protection.
// Value is always nil.
func (t *Tree) Walk(fn func(v Visit)) {
	t.walk(0, nil, func(n *Tree, v Visit) bool {
		fn(v)
		return true
	})
}

// walk stops early once fn returns false and reports whether it ran to the end.
func (t *Tree) walk(depth int, path []int, fn func(n *Tree, v Visit) bool) bool {
	if !fn(t, Visit{Name: t.ctx.Name(), Kind: t.ctx.Kind(), Depth: depth, Path: path}) {
		return false
	}
	for i, c := range t.children {
		if !c.walk(depth+1, childPath(path, i), fn) {
			return false
		}
	}
	return true
}

// Close closes every context of the tree, children before their parent.
// It keeps going after a failure and returns all errors together.
func (t *Tree) Close() error {
	var merr error
	for _, c := range t.children {
		if err := c.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if err := t.ctx.Close(); err != nil {
		merr = multierror.Append(merr, err)
	}
	return merr
}

// Delivery addresses one T-typed node of a tree. Build it with Send.
type Delivery[T any] struct {
	tree  *Tree
	index int
}

// Send selects the index-th node (counting from zero, in pre-order) whose
// context holds a T. Nodes holding other types are not counted.
func Send[T any](t *Tree, index int) Delivery[T] {
	return Delivery[T]{tree: t, index: index}
}

func (d Delivery[T]) find() (*Tree, error) {
	var found *Tree
	if d.index >= 0 {
		seen := 0
		d.tree.walk(0, nil, func(n *Tree, _ Visit) bool {
			if _, ok := n.ctx.(Invoker[T]); !ok {
				return true
			}
			if seen == d.index {
				found = n
				return false
			}
			seen++
			return true
		})
	}
	if found == nil {
		var zero T
		return nil, fmt.Errorf("%w: %T node #%d", ErrNodeNotFound, zero, d.index)
	}
	return found, nil
}

// To runs consumer on the selected node's cell pointer under that node's
// protection. No ancestor is locked.
func (d Delivery[T]) To(consumer func(v *T)) error {
	n, err := d.find()
	if err != nil {
		return err
	}
	n.ctx.(Invoker[T]).Invoke(consumer)
	return nil
}

// Store replaces the selected node's value, filling an empty cell.
func (d Delivery[T]) Store(v T) error {
	n, err := d.find()
	if err != nil {
		return err
	}
	s, ok := n.ctx.(storer[T])
	if !ok {
		return fmt.Errorf("%s cannot store a %T: %w", n.ctx.Name(), v, ErrNodeNotFound)
	}
	s.store(v)
	return nil
}

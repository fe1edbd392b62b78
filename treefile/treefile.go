// Package treefile builds a syncplus.Tree from a YAML description:
//
//	name: root
//	kind: monitor        # monitor | gate | rw
//	int: 5               # optional int payload
//	children:
//	  - name: pool
//	    kind: gate
//	    permits: 2
//	    text: "hello"    # optional string payload
//	  - name: config
//	    kind: rw
//	    mode: writer     # fair | reader | writer
//
// A node without int or text carries no payload.
package treefile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/christophcemper/syncplus"
)

var (
	ErrInvalidNode = errors.New("invalid node")
	ErrEmpty       = errors.New("empty tree description")
)

const (
	KindMonitor = "monitor"
	KindGate    = "gate"
	KindRW      = "rw"
)

// Node is one entry of a tree description.
type Node struct {
	Name     string  `yaml:"name,omitempty"`
	Kind     string  `yaml:"kind"`
	Int      *int    `yaml:"int,omitempty"`
	Text     *string `yaml:"text,omitempty"`
	Permits  int64   `yaml:"permits,omitempty"`
	Mode     string  `yaml:"mode,omitempty"`
	Children []*Node `yaml:"children,omitempty"`
}

// Parse decodes a description. Unknown fields are rejected.
func Parse(r io.Reader) (*Node, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var root Node
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("error unmarshalling tree yaml: %w", err)
	}
	return &root, nil
}

// Validate checks every node and returns all problems found.
func (n *Node) Validate() error {
	var merr error
	n.validate(n.label("root"), &merr)
	return merr
}

func (n *Node) label(fallback string) string {
	if n.Name != "" {
		return n.Name
	}
	return fallback
}

func (n *Node) validate(path string, merr *error) {
	fail := func(format string, args ...any) {
		*merr = multierror.Append(*merr, fmt.Errorf("%s: %w: %s", path, ErrInvalidNode, fmt.Sprintf(format, args...)))
	}

	switch n.Kind {
	case KindMonitor, KindGate, KindRW:
	case "":
		fail("missing kind")
	default:
		fail("unknown kind %q", n.Kind)
	}
	if n.Int != nil && n.Text != nil {
		fail("int and text are mutually exclusive")
	}
	if n.Permits < 0 {
		fail("permits must be positive, got %d", n.Permits)
	}
	if n.Permits != 0 && n.Kind != KindGate {
		fail("permits only apply to gates")
	}
	if n.Mode != "" {
		if n.Kind != KindRW {
			fail("mode only applies to rw")
		} else if _, err := syncplus.ParseMode(n.Mode); err != nil {
			fail("%v", err)
		}
	}

	for i, c := range n.Children {
		if c == nil {
			fail("child %d is empty", i)
			continue
		}
		c.validate(path+"/"+c.label(strconv.Itoa(i)), merr)
	}
}

// Build validates the description and constructs its tree. opts apply to
// every context; a node's name overrides any WithName among them.
func (n *Node) Build(opts ...syncplus.Option) (*syncplus.Tree, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n.build(opts), nil
}

func (n *Node) build(opts []syncplus.Option) *syncplus.Tree {
	children := make([]*syncplus.Tree, len(n.Children))
	for i, c := range n.Children {
		children[i] = c.build(opts)
	}
	return syncplus.NewTree(n.context(opts), children...)
}

func (n *Node) context(opts []syncplus.Option) syncplus.Context {
	opts = append(opts[:len(opts):len(opts)], syncplus.WithName(n.Name))
	if n.Kind == KindRW {
		// validated already
		mode, _ := syncplus.ParseMode(n.Mode)
		opts = append(opts, syncplus.WithMode(mode))
	}
	permits := n.Permits
	if permits == 0 {
		permits = 1
	}

	switch {
	case n.Int != nil:
		return newContext(n.Kind, *n.Int, permits, opts)
	case n.Text != nil:
		return newContext(n.Kind, *n.Text, permits, opts)
	}

	switch n.Kind {
	case KindGate:
		return syncplus.NewVoidGate(permits, opts...)
	case KindRW:
		return syncplus.NewEmptyRW[syncplus.Void](opts...)
	default:
		return syncplus.NewVoidMonitor(opts...)
	}
}

func newContext[T any](kind string, v T, permits int64, opts []syncplus.Option) syncplus.Context {
	switch kind {
	case KindGate:
		return syncplus.NewGate(v, permits, opts...)
	case KindRW:
		return syncplus.NewRW(v, opts...)
	default:
		return syncplus.NewMonitor(v, opts...)
	}
}

// Load parses and builds a tree from r.
func Load(r io.Reader, opts ...syncplus.Option) (*syncplus.Tree, error) {
	root, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return root.Build(opts...)
}

// LoadFile is Load for a file path.
func LoadFile(path string, opts ...syncplus.Option) (*syncplus.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening tree file: %w", err)
	}
	defer f.Close()

	tree, err := Load(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tree, nil
}

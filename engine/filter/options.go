package filter

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-sono/common"
)

// OptionTree is a tree of named 0..1 controls. Leaves are bound to a parameter; inner nodes
// group the leaves of one filter or of a whole pipeline.
type OptionTree struct {
	Name     string
	Children []*OptionTree

	get func() float32
	set func(float32)
}

// NewOptionGroup creates an inner node.
//
// Parameters:
//   - name: the group name
//   - children: the child nodes
//
// Returns:
//   - *OptionTree: the group
func NewOptionGroup(name string, children ...*OptionTree) *OptionTree {
	return &OptionTree{Name: name, Children: children}
}

// NewOption creates a leaf bound to a getter and setter. The setter always receives a value
// already clamped to [0, 1].
//
// Parameters:
//   - name: the control name
//   - get: reads the bound value
//   - set: writes the bound value
//
// Returns:
//   - *OptionTree: the leaf
func NewOption(name string, get func() float32, set func(float32)) *OptionTree {
	return &OptionTree{Name: name, get: get, set: set}
}

// IsLeaf reports whether the node is bound to a value.
func (t *OptionTree) IsLeaf() bool {
	return t.set != nil
}

// Value returns the bound value of a leaf, 0 for a group.
func (t *OptionTree) Value() float32 {
	if t.get == nil {
		return 0
	}
	return t.get()
}

// SetValue writes a leaf's bound value clamped to [0, 1]. It is a no-op on a group.
func (t *OptionTree) SetValue(v float32) {
	if t.set != nil {
		t.set(common.Clamp01(v))
	}
}

// Find looks a node up by a slash separated path relative to t, e.g. "cutoff" or
// "1:threshold/cutoff".
//
// Parameters:
//   - path: the node path
//
// Returns:
//   - *OptionTree: the node, or nil if absent
func (t *OptionTree) Find(path string) *OptionTree {
	node := t
	for part := range strings.SplitSeq(path, "/") {
		var next *OptionTree
		for _, c := range node.Children {
			if c.Name == part {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		node = next
	}
	return node
}

// Set writes the leaf at path, clamped to [0, 1].
//
// Parameters:
//   - path: the leaf path, see Find
//   - value: the new value
//
// Returns:
//   - error: an error if no leaf exists at path
func (t *OptionTree) Set(path string, value float32) error {
	n := t.Find(path)
	if n == nil || !n.IsLeaf() {
		return fmt.Errorf("%s: no option %q", t.Name, path)
	}
	n.SetValue(value)
	return nil
}

// Leaves returns every leaf below t in depth-first order.
func (t *OptionTree) Leaves() []*OptionTree {
	var out []*OptionTree
	var walk func(n *OptionTree)
	walk = func(n *OptionTree) {
		if n.IsLeaf() {
			out = append(out, n)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t)
	return out
}

// String renders the tree one node per line, leaves with their value.
func (t *OptionTree) String() string {
	var b strings.Builder
	var walk func(n *OptionTree, depth int)
	walk = func(n *OptionTree, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		if n.IsLeaf() {
			fmt.Fprintf(&b, "%s = %.2f\n", n.Name, n.Value())
		} else {
			b.WriteString(n.Name + "\n")
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(t, 0)
	return b.String()
}

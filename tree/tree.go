/*
Package tree holds the structure of a grown panel tree: the splits on
characteristic thresholds and the leaves they partition a cross-section into.
*/
package tree

import (
	"fmt"
	"strings"

	"github.com/pbanos/ptree/feature"
)

// Tree represents a panel tree by its root node.
type Tree struct {
	Root Node
}

// New takes the root Node of a tree and returns the tree.
func New(root Node) *Tree {
	return &Tree{Root: root}
}

/*
Leaf takes a characteristic vector and returns the leaf of the tree an
observation with it falls into.
*/
func (t *Tree) Leaf(values []float64) *Leaf {
	n := t.Root
	for {
		switch v := n.(type) {
		case *Leaf:
			return v
		case *Split:
			n = v.Route(values)
		default:
			panic(fmt.Sprintf("unknown tree node type %T", n))
		}
	}
}

// Leaves returns the leaves of the tree from left to right.
func (t *Tree) Leaves() []*Leaf {
	var leaves []*Leaf
	t.Traverse(false, func(n Node) error {
		if l, ok := n.(*Leaf); ok {
			leaves = append(leaves, l)
		}
		return nil
	})
	return leaves
}

// NumLeaves returns the number of leaves of the tree.
func (t *Tree) NumLeaves() int {
	return len(t.Leaves())
}

// Splits returns the splits of the tree in pre-order.
func (t *Tree) Splits() []*Split {
	var splits []*Split
	t.Traverse(false, func(n Node) error {
		if s, ok := n.(*Split); ok {
			splits = append(splits, s)
		}
		return nil
	})
	return splits
}

// Depth returns the depth of the deepest node of the tree.
func (t *Tree) Depth() int {
	var depth int
	t.Traverse(false, func(n Node) error {
		if n.NodeDepth() > depth {
			depth = n.NodeDepth()
		}
		return nil
	})
	return depth
}

/*
Path takes a leaf ID and returns the criteria an observation must satisfy to
fall into that leaf, one interval per characteristic split on along the way,
in the order the characteristics are first split on. It returns nil if no
leaf has the ID.
*/
func (t *Tree) Path(leafID int) []feature.Interval {
	path, ok := path(t.Root, leafID, nil)
	if !ok {
		return nil
	}
	var result []feature.Interval
	for _, c := range path {
		merged := false
		for i, r := range result {
			if in, ok := r.Intersect(c); ok {
				result[i] = in
				merged = true
				break
			}
		}
		if !merged {
			result = append(result, c)
		}
	}
	return result
}

func path(n Node, leafID int, acc []feature.Interval) ([]feature.Interval, bool) {
	switch v := n.(type) {
	case *Leaf:
		return acc, v.ID == leafID
	case *Split:
		if p, ok := path(v.Left, leafID, append(acc[:len(acc):len(acc)], v.Below())); ok {
			return p, true
		}
		return path(v.Right, leafID, append(acc[:len(acc):len(acc)], v.Above()))
	}
	return nil, false
}

/*
Traverse takes a bottomup boolean and an error-returning function that takes
a node and goes through the tree running the function on every node, left
subtrees first. The function is called with a parent node before its
children if bottomup is false, and after them if bottomup is true. If the
function returns an error the traversing is aborted and the error returned.
*/
func (t *Tree) Traverse(bottomup bool, f func(Node) error) error {
	if t == nil || t.Root == nil {
		return nil
	}
	return traverse(t.Root, bottomup, f)
}

func traverse(n Node, bottomup bool, f func(Node) error) error {
	if !bottomup {
		if err := f(n); err != nil {
			return err
		}
	}
	if s, ok := n.(*Split); ok {
		if err := traverse(s.Left, bottomup, f); err != nil {
			return err
		}
		if err := traverse(s.Right, bottomup, f); err != nil {
			return err
		}
	}
	if bottomup {
		return f(n)
	}
	return nil
}

func (t *Tree) String() string {
	if t == nil || t.Root == nil {
		return "[empty]\n"
	}
	return subtreeString(t.Root, "")
}

func subtreeString(n Node, label string) string {
	var result string
	switch v := n.(type) {
	case *Leaf:
		result = fmt.Sprintf("%s[leaf %d]", label, v.ID)
		if v.Reason != "" {
			result = fmt.Sprintf("%s (%s)", result, v.Reason)
		}
		return result + "\n"
	case *Split:
		result = fmt.Sprintf("%s[split %s at %f]\n|\n", label, v.Characteristic.Name, v.Cutpoint)
		children := []struct {
			n     Node
			label string
		}{
			{v.Left, fmt.Sprintf("{ %v } ", v.Below())},
			{v.Right, fmt.Sprintf("{ %v } ", v.Above())},
		}
		for i, c := range children {
			for j, line := range strings.Split(subtreeString(c.n, c.label), "\n") {
				if len(line) == 0 {
					continue
				}
				switch {
				case j == 0:
					result = fmt.Sprintf("%s|__%s\n", result, line)
				case i == len(children)-1:
					result = fmt.Sprintf("%s   %s\n", result, line)
				default:
					result = fmt.Sprintf("%s|  %s\n", result, line)
				}
			}
		}
	}
	return result
}

package tree

import (
	"github.com/pbanos/ptree/feature"
)

/*
Node is a node of a tree: either a *Leaf or a *Split. Splits own their two
children; there are no references back to parents.
*/
type Node interface {
	// NodeDepth returns the depth of the node, 0 for the root.
	NodeDepth() int
	isNode()
}

/*
LeafReason tells why a node was left as a leaf instead of being split.
*/
type LeafReason string

const (
	// MaxDepth is the reason for leaves at the maximum depth allowed.
	MaxDepth = LeafReason("max-depth")
	// Infeasible is the reason for leaves for which no candidate split
	// left enough assets on both sides in every month.
	Infeasible = LeafReason("infeasible")
	// Pruned is the reason for leaves whose best split did not improve
	// the objective enough.
	Pruned = LeafReason("pruned")
)

/*
Leaf is a terminal node of the tree, one of the portfolios the cross-section
is partitioned into. Leaves are numbered from 0 left to right.
*/
type Leaf struct {
	ID     int
	Depth  int
	Reason LeafReason
}

/*
Split is an internal node of the tree. Observations whose value for the
characteristic is at or below the cutpoint go to the Left subtree, the rest
go to the Right subtree.
*/
type Split struct {
	Characteristic feature.Characteristic
	Cutpoint       float64
	Depth          int
	// Gain is the improvement in the objective the split achieved when it
	// was chosen.
	Gain        float64
	Left, Right Node
}

// NodeDepth returns the depth of the leaf.
func (l *Leaf) NodeDepth() int { return l.Depth }

// NodeDepth returns the depth of the split.
func (s *Split) NodeDepth() int { return s.Depth }

func (*Leaf) isNode()  {}
func (*Split) isNode() {}

// Below returns the criterion observations on the left subtree satisfy.
func (s *Split) Below() feature.Interval {
	return feature.Below(s.Characteristic, s.Cutpoint)
}

// Above returns the criterion observations on the right subtree satisfy.
func (s *Split) Above() feature.Interval {
	return feature.Above(s.Characteristic, s.Cutpoint)
}

/*
Route takes a characteristic vector and returns the subtree of the split the
observation with it belongs to.
*/
func (s *Split) Route(values []float64) Node {
	if values[s.Characteristic.Index] <= s.Cutpoint {
		return s.Left
	}
	return s.Right
}

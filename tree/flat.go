package tree

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pbanos/ptree/feature"
)

/*
FlatNode is the serializable form of a node. A tree is serialized as the
slice of its nodes in pre-order, linked by IDs: the root is the node with no
ParentID, splits list their left and right children on SubtreeIDs and leaves
have none.
*/
type FlatNode struct {
	ID             int        `json:"id" msgpack:"id"`
	ParentID       int        `json:"pId,omitempty" msgpack:"pId,omitempty"`
	SubtreeIDs     []int      `json:"stIds,omitempty" msgpack:"stIds,omitempty"`
	Characteristic int        `json:"c,omitempty" msgpack:"c,omitempty"`
	Name           string     `json:"f,omitempty" msgpack:"f,omitempty"`
	Cutpoint       float64    `json:"cut,omitempty" msgpack:"cut,omitempty"`
	Gain           float64    `json:"gain,omitempty" msgpack:"gain,omitempty"`
	Depth          int        `json:"d" msgpack:"d"`
	LeafID         int        `json:"leaf,omitempty" msgpack:"leaf,omitempty"`
	Reason         LeafReason `json:"r,omitempty" msgpack:"r,omitempty"`
}

/*
Flatten returns the nodes of the tree as a slice of FlatNode in pre-order.
Node IDs start at 1 so that a zero ParentID marks the root.
*/
func (t *Tree) Flatten() []FlatNode {
	var nodes []FlatNode
	var flatten func(n Node, parentID int) int
	flatten = func(n Node, parentID int) int {
		id := len(nodes) + 1
		nodes = append(nodes, FlatNode{ID: id, ParentID: parentID, Depth: n.NodeDepth()})
		switch v := n.(type) {
		case *Leaf:
			nodes[id-1].LeafID = v.ID
			nodes[id-1].Reason = v.Reason
		case *Split:
			nodes[id-1].Characteristic = v.Characteristic.Index
			nodes[id-1].Name = v.Characteristic.Name
			nodes[id-1].Cutpoint = v.Cutpoint
			nodes[id-1].Gain = v.Gain
			left := flatten(v.Left, id)
			right := flatten(v.Right, id)
			nodes[id-1].SubtreeIDs = []int{left, right}
		}
		return id
	}
	if t != nil && t.Root != nil {
		flatten(t.Root, 0)
	}
	return nodes
}

/*
Unflatten takes a slice of FlatNode and returns the tree they describe or an
error if they do not describe one: no root or more than one, unknown or
repeated IDs, splits without exactly two children or nodes reachable twice.
*/
func Unflatten(nodes []FlatNode) (*Tree, error) {
	byID := make(map[int]*FlatNode, len(nodes))
	var root *FlatNode
	for i := range nodes {
		fn := &nodes[i]
		if _, ok := byID[fn.ID]; ok {
			return nil, fmt.Errorf("node id %d repeated", fn.ID)
		}
		byID[fn.ID] = fn
		if fn.ParentID == 0 {
			if root != nil {
				return nil, fmt.Errorf("nodes %d and %d are both roots", root.ID, fn.ID)
			}
			root = fn
		}
	}
	if root == nil {
		return nil, fmt.Errorf("no root node available")
	}
	visited := make(map[int]bool, len(nodes))
	var build func(id int) (Node, error)
	build = func(id int) (Node, error) {
		fn, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("node %d not found", id)
		}
		if visited[id] {
			return nil, fmt.Errorf("node %d reached twice", id)
		}
		visited[id] = true
		switch len(fn.SubtreeIDs) {
		case 0:
			return &Leaf{ID: fn.LeafID, Depth: fn.Depth, Reason: fn.Reason}, nil
		case 2:
			left, err := build(fn.SubtreeIDs[0])
			if err != nil {
				return nil, err
			}
			right, err := build(fn.SubtreeIDs[1])
			if err != nil {
				return nil, err
			}
			return &Split{
				Characteristic: feature.Characteristic{Index: fn.Characteristic, Name: fn.Name},
				Cutpoint:       fn.Cutpoint,
				Gain:           fn.Gain,
				Depth:          fn.Depth,
				Left:           left,
				Right:          right,
			}, nil
		}
		return nil, fmt.Errorf("node %d has %d subtrees", id, len(fn.SubtreeIDs))
	}
	n, err := build(root.ID)
	if err != nil {
		return nil, err
	}
	if len(visited) != len(nodes) {
		return nil, fmt.Errorf("%d nodes not connected to the root", len(nodes)-len(visited))
	}
	return New(n), nil
}

/*
MarshalJSON serializes the tree as a JSON object with a "nodes" array
holding its flattened nodes.
*/
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Nodes []FlatNode `json:"nodes"`
	}{t.Flatten()})
}

/*
UnmarshalJSON takes a JSON object as produced by MarshalJSON and sets the
tree to the one it describes.
*/
func (t *Tree) UnmarshalJSON(data []byte) error {
	jt := &struct {
		Nodes []FlatNode `json:"nodes"`
	}{}
	if err := json.Unmarshal(data, jt); err != nil {
		return err
	}
	ut, err := Unflatten(jt.Nodes)
	if err != nil {
		return fmt.Errorf("unmarshalling tree: %v", err)
	}
	t.Root = ut.Root
	return nil
}

// EncodeMsgpack encodes the tree as the msgpack array of its flattened nodes.
func (t *Tree) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(t.Flatten())
}

// DecodeMsgpack sets the tree to the one described by a msgpack array of
// flattened nodes.
func (t *Tree) DecodeMsgpack(dec *msgpack.Decoder) error {
	var nodes []FlatNode
	if err := dec.Decode(&nodes); err != nil {
		return err
	}
	ut, err := Unflatten(nodes)
	if err != nil {
		return fmt.Errorf("decoding tree: %v", err)
	}
	t.Root = ut.Root
	return nil
}

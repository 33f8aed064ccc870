package graph

import (
	"encoding/binary"
	"fmt"

	"github.com/psgs/psgs/psgs"
)

// Node is a graph vertex carrying a NodeData payload and its edges.
//
// A node is created unattached with NewNode, gets its id when added to a graph,
// and becomes detached for good when removed.  Edges are reached through the
// model instances of the node's graph.
type Node struct {
	id     uint32
	typeID uint8
	g      graphImpl

	dirty  bool
	onDisk bool

	data NodeData
	adj  adjacency
}

// NewNode returns an unattached node.
func NewNode(data NodeData) *Node {
	return &Node{data: data}
}

// ID returns the node id, or 0 if the node was never attached.
func (n *Node) ID() uint32 {
	return n.id
}

// Data returns the node payload.
func (n *Node) Data() NodeData {
	return n.data
}

// TypeName returns the payload type name.
func (n *Node) TypeName() string {
	if n.data == nil {
		return ""
	}
	return n.data.TypeName()
}

// Graph returns the owning graph, or nil if the node is unattached or detached.
func (n *Node) Graph() Graph {
	if n.g == nil {
		return nil
	}
	return n.g
}

// IsAttached reports whether the node belongs to a graph.
func (n *Node) IsAttached() bool {
	return n.g != nil
}

// IsDirty reports whether the node changed since it was loaded.
func (n *Node) IsDirty() bool {
	return n.dirty
}

// OnChange must be called after changing the payload of an attached node so the
// change gets persisted.  Edge changes call it themselves.
func (n *Node) OnChange() error {
	if n.g == nil {
		return psgs.ErrNodeNotInGraph
	}
	if n.dirty {
		return nil
	}
	if err := n.g.nodeChanged(n); err != nil {
		return err
	}
	n.dirty = true
	return nil
}

func (n *Node) String() string {
	return fmt.Sprintf("%s node %d", n.TypeName(), n.id)
}

// removeFromGraph removes every edge of the node, maintaining the reverse side
// on other nodes, and detaches it.  The id is kept.
func (n *Node) removeFromGraph() error {
	for _, a := range n.adj.entries() {
		if err := a.clear(); err != nil {
			return fmt.Errorf("removing %s edges of %s: %w", a.owner().Name(), n, err)
		}
	}
	n.adj = adjacency{}
	n.g = nil
	n.dirty = false
	return nil
}

// adjacent is the per-model edge state held by a node: *Edges[D] or
// *UniqueEdge[D].
type adjacent interface {
	owner() anyModel

	// count is the number of edges held.
	count() int

	// encode appends the persisted form.  It is only called when count > 0.
	encode(b []byte, order binary.ByteOrder) []byte

	// clear removes all edges with reverse maintenance.
	clear() error
}

// adjacency is a small vector of adjacent entries.  Most nodes use one or two
// models, so the first entry is held inline.
type adjacency struct {
	one  adjacent
	many []adjacent
}

func (a *adjacency) get(modelID uint8) adjacent {
	if a.one != nil {
		if a.one.owner().ID() == modelID {
			return a.one
		}
		return nil
	}
	for _, e := range a.many {
		if e.owner().ID() == modelID {
			return e
		}
	}
	return nil
}

func (a *adjacency) put(e adjacent) {
	switch {
	case a.one == nil && a.many == nil:
		a.one = e
	case a.one != nil:
		a.many = []adjacent{a.one, e}
		a.one = nil
	default:
		a.many = append(a.many, e)
	}
}

// entries returns a snapshot of the entries.
func (a *adjacency) entries() []adjacent {
	if a.one != nil {
		return []adjacent{a.one}
	}
	out := make([]adjacent, len(a.many))
	copy(out, a.many)
	return out
}

func (a *adjacency) len() int {
	if a.one != nil {
		return 1
	}
	return len(a.many)
}

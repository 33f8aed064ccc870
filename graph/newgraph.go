package graph

import (
	"slices"

	"github.com/psgs/psgs/psgs"
)

// MemGraph is a graph held entirely in memory.  Write persists it to a
// directory that can later be opened as an ExistingGraph.
type MemGraph struct {
	graphBase
	nodes map[uint32]*Node
}

// NewGraph returns an empty in-memory graph.
func NewGraph(schema *Schema, cfg Config) (*MemGraph, error) {
	order, err := cfg.order()
	if err != nil {
		return nil, err
	}
	g := &MemGraph{nodes: make(map[uint32]*Node)}
	g.graphBase = newGraphBase(g, schema, cfg, order)
	return g, nil
}

func (g *MemGraph) Node(id uint32) (*Node, error) {
	if err := g.checkOpen(); err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, psgs.ErrZeroNodeID
	}
	return g.nodes[id], nil
}

func (g *MemGraph) IsNodeIDUsed(id uint32) (bool, error) {
	if err := g.checkOpen(); err != nil {
		return false, err
	}
	if id == 0 {
		return false, psgs.ErrZeroNodeID
	}
	_, found := g.nodes[id]
	return found, nil
}

func (g *MemGraph) RemoveNode(n *Node) error {
	if n == nil {
		return psgs.ErrNodeNotInGraph
	}
	id := n.id
	if err := g.removeNode(n); err != nil {
		return err
	}
	delete(g.nodes, id)
	return nil
}

func (g *MemGraph) ForEachNode(fn func(*Node) error) error {
	for _, id := range g.sortedIDs() {
		if n := g.nodes[id]; n != nil {
			if err := fn(n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *MemGraph) sortedIDs() []uint32 {
	ids := make([]uint32, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Write persists the graph into dir, replacing anything there.  The graph stays
// usable afterwards.
func (g *MemGraph) Write(dir string) error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	tlog := psgs.NewTimeLog()
	w, err := newGraphWriter(&g.graphBase, dir, g.cfg.indexEngine(""))
	if err != nil {
		return err
	}
	for _, id := range g.sortedIDs() {
		if err := w.writeNode(g.nodes[id]); err != nil {
			w.abort()
			return err
		}
	}
	if err := w.finish(nil); err != nil {
		return err
	}
	tlog.Infof("Wrote %d nodes of in-memory graph to %s", len(g.nodes), dir)
	return nil
}

// Close releases the graph.  It doesn't write anything.
func (g *MemGraph) Close() error {
	g.closed = true
	return nil
}

func (g *MemGraph) nodeForChange(id uint32) (*Node, error) {
	return g.nodes[id], nil
}

func (g *MemGraph) checkHandle(n *Node) error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	if n.g == nil {
		return psgs.ErrNodeNotInGraph
	}
	if n.g != graphImpl(g) {
		return psgs.ErrCrossGraph
	}
	if g.nodes[n.id] != n {
		return psgs.ErrNodeNotInGraph
	}
	return nil
}

func (g *MemGraph) nodeChanged(*Node) error {
	return nil
}

func (g *MemGraph) attach(n *Node) error {
	if _, found := g.nodes[n.id]; found {
		return psgs.Usagef("node id %d already used", n.id)
	}
	g.nodes[n.id] = n
	return nil
}

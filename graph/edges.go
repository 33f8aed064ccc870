package graph

import (
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/psgs/psgs/graph/edgemap"
	"github.com/psgs/psgs/psgs"
	"github.com/psgs/psgs/record"
)

// EdgeModel is a multi edge model bound to a graph.
type EdgeModel[D any] struct {
	modelCore
	codec   record.Codec[D]
	reverse model[D]
	self    bool
}

func (m *EdgeModel[D]) Unique() bool { return false }

// From returns the edges of model m leaving n.
func (m *EdgeModel[D]) From(n *Node) (*Edges[D], error) {
	if err := m.checkSource(n); err != nil {
		return nil, err
	}
	return m.edgesOf(n), nil
}

func (m *EdgeModel[D]) edgesOf(n *Node) *Edges[D] {
	if a := n.adj.get(m.id); a != nil {
		return a.(*Edges[D])
	}
	e := &Edges[D]{model: m, source: n}
	n.adj.put(e)
	return e
}

// hasReverseFor reports whether an edge to targetID needs reverse maintenance.
func (m *EdgeModel[D]) hasReverseFor(source *Node, targetID uint32) bool {
	return m.reverse != nil && !(m.self && targetID == source.id)
}

func (m *EdgeModel[D]) putReverse(source, target *Node, d D) error {
	e := m.edgesOf(target)
	if err := target.OnChange(); err != nil {
		return err
	}
	e.ensureMap(1).JustAdd(source.id, d)
	return nil
}

func (m *EdgeModel[D]) removeReverse(source, target *Node) error {
	e := m.edgesOf(target)
	if e.m == nil {
		return psgs.Corruptedf("%s edges of %s should hold node %d", m.name, target, source.id)
	}
	if err := target.OnChange(); err != nil {
		return err
	}
	e.m.JustRemove(source.id)
	return nil
}

func (m *EdgeModel[D]) dropLocal(holder *Node, targetID uint32) error {
	e := m.edgesOf(holder)
	if e.m == nil || !e.m.Contains(targetID) {
		return nil
	}
	if err := holder.OnChange(); err != nil {
		return err
	}
	e.m.JustRemove(targetID)
	return nil
}

func (m *EdgeModel[D]) decode(n *Node, entry []byte) (adjacent, error) {
	em, size, err := edgemap.Decode(entry, m.g.order, m.codec)
	if err != nil {
		return nil, fmt.Errorf("%s edges of node %d: %w", m.name, n.id, err)
	}
	if size != len(entry) {
		return nil, psgs.Corruptedf("%s edges of node %d: %d trailing bytes", m.name, n.id, len(entry)-size)
	}
	return &Edges[D]{model: m, source: n, m: em}, nil
}

// Edges is the set of edges of one model leaving a node.  Every change keeps the
// reverse model on the targets in sync.
type Edges[D any] struct {
	model  *EdgeModel[D]
	source *Node
	m      edgemap.Map[D]
}

func (e *Edges[D]) ensureMap(expected int) edgemap.Map[D] {
	if e.m == nil {
		e.m = edgemap.New(expected, e.model.codec, e.model.g.order)
	}
	return e.m
}

func (e *Edges[D]) owner() anyModel {
	return e.model
}

// Source returns the node the edges leave from.
func (e *Edges[D]) Source() *Node {
	return e.source
}

// Count returns the number of edges.
func (e *Edges[D]) Count() int {
	if e.m == nil {
		return 0
	}
	return e.m.Len()
}

func (e *Edges[D]) count() int {
	return e.Count()
}

func (e *Edges[D]) IsEmpty() bool {
	return e.Count() == 0
}

// IsPresentTo reports whether there's an edge to targetID.
func (e *Edges[D]) IsPresentTo(targetID uint32) bool {
	return e.m != nil && e.m.Contains(targetID)
}

// Get returns the data of the edge to targetID.
func (e *Edges[D]) Get(targetID uint32) (d D, found bool) {
	if e.m == nil {
		return
	}
	return e.m.Get(targetID)
}

// To returns a view of the edge to targetID.
func (e *Edges[D]) To(targetID uint32) (*Edge[D], bool) {
	if !e.IsPresentTo(targetID) {
		return nil, false
	}
	return &Edge[D]{edges: e, target: targetID}, true
}

// Add adds or updates the edge to targetID.
func (e *Edges[D]) Add(targetID uint32, d D) error {
	g := e.model.g.self
	if err := g.checkHandle(e.source); err != nil {
		return err
	}
	if targetID == 0 {
		return psgs.ErrZeroNodeID
	}
	if e.model.hasReverseFor(e.source, targetID) {
		target, err := e.model.resolve(targetID, e.source)
		if err != nil {
			return err
		}
		if target == nil {
			return fmt.Errorf("%w: node %d", psgs.ErrUnknownTarget, targetID)
		}
		if err := e.model.reverse.putReverse(e.source, target, d); err != nil {
			return err
		}
	}
	if err := e.source.OnChange(); err != nil {
		return err
	}
	e.ensureMap(1).JustAdd(targetID, d)
	return nil
}

// AddNode adds or updates the edge to target, which must be in the same graph.
func (e *Edges[D]) AddNode(target *Node, d D) error {
	if err := e.model.checkSource(target); err != nil {
		return err
	}
	return e.Add(target.id, d)
}

// AddAll adds edges with data d to all targetIDs.
func (e *Edges[D]) AddAll(d D, targetIDs ...uint32) error {
	if len(targetIDs) > 0 && e.m == nil {
		e.ensureMap(len(targetIDs))
	}
	for _, id := range targetIDs {
		if err := e.Add(id, d); err != nil {
			return err
		}
	}
	return nil
}

// JustRemoveTo removes the edge to targetID and reports whether it existed.
func (e *Edges[D]) JustRemoveTo(targetID uint32) (bool, error) {
	if !e.IsPresentTo(targetID) {
		return false, nil
	}
	if err := e.model.g.self.checkHandle(e.source); err != nil {
		return false, err
	}
	if err := e.removeReverseFor(targetID); err != nil {
		return false, err
	}
	if err := e.source.OnChange(); err != nil {
		return false, err
	}
	e.m.JustRemove(targetID)
	return true, nil
}

// RemoveNode removes the edge to target.
func (e *Edges[D]) RemoveNode(target *Node) (bool, error) {
	if err := e.model.checkSource(target); err != nil {
		return false, err
	}
	return e.JustRemoveTo(target.id)
}

// RemoveAll removes every edge.  Removing from empty edges changes nothing.
func (e *Edges[D]) RemoveAll() error {
	if e.IsEmpty() {
		return nil
	}
	if err := e.model.g.self.checkHandle(e.source); err != nil {
		return err
	}
	var targets []*Node
	for id := range e.m.All() {
		if !e.model.hasReverseFor(e.source, id) {
			continue
		}
		t, err := e.model.resolve(id, e.source)
		if err != nil {
			return err
		}
		if t == nil {
			return psgs.Corruptedf("%s edge of %s to missing node %d", e.model.name, e.source, id)
		}
		targets = append(targets, t)
	}
	if err := e.source.OnChange(); err != nil {
		return err
	}
	e.m = nil
	for _, t := range targets {
		if err := e.model.reverse.removeReverse(e.source, t); err != nil {
			return err
		}
	}
	return nil
}

func (e *Edges[D]) clear() error {
	return e.RemoveAll()
}

func (e *Edges[D]) removeReverseFor(targetID uint32) error {
	if !e.model.hasReverseFor(e.source, targetID) {
		return nil
	}
	t, err := e.model.resolve(targetID, e.source)
	if err != nil {
		return err
	}
	if t == nil {
		return psgs.Corruptedf("%s edge of %s to missing node %d", e.model.name, e.source, targetID)
	}
	return e.model.reverse.removeReverse(e.source, t)
}

// All iterates over target ids and edge data.  Use Cursor to change edges
// while iterating.
func (e *Edges[D]) All() iter.Seq2[uint32, D] {
	return func(yield func(uint32, D) bool) {
		if e.m == nil {
			return
		}
		for id, d := range e.m.All() {
			if !yield(id, d) {
				return
			}
		}
	}
}

// Targets iterates over target ids.
func (e *Edges[D]) Targets() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for id := range e.All() {
			if !yield(id) {
				return
			}
		}
	}
}

// Cursor returns a cursor over the edges that can update and remove them.
func (e *Edges[D]) Cursor() *EdgeCursor[D] {
	c := &EdgeCursor[D]{edges: e}
	if e.m != nil {
		c.c = e.m.Cursor()
	}
	return c
}

func (e *Edges[D]) encode(b []byte, order binary.ByteOrder) []byte {
	return e.m.AppendTo(b, order)
}

// Edge is a view of a single edge.
type Edge[D any] struct {
	edges  *Edges[D]
	target uint32
}

func (e *Edge[D]) Source() *Node {
	return e.edges.source
}

func (e *Edge[D]) TargetID() uint32 {
	return e.target
}

// Data returns the edge data.  The zero value is returned if the edge was
// removed.
func (e *Edge[D]) Data() D {
	d, _ := e.edges.Get(e.target)
	return d
}

// SetData updates the edge data on both sides.
func (e *Edge[D]) SetData(d D) error {
	if !e.edges.IsPresentTo(e.target) {
		return psgs.Usagef("edge %d -> %d was removed", e.edges.source.id, e.target)
	}
	return e.edges.Add(e.target, d)
}

// EdgeCursor walks edges and allows changing the current one.
type EdgeCursor[D any] struct {
	edges *Edges[D]
	c     *edgemap.Cursor[D]
}

func (c *EdgeCursor[D]) Next() bool {
	return c.c != nil && c.c.Next()
}

func (c *EdgeCursor[D]) TargetID() uint32 {
	return c.c.ID()
}

func (c *EdgeCursor[D]) Data() D {
	return c.c.Value()
}

// SetData updates the current edge on both sides.
func (c *EdgeCursor[D]) SetData(d D) error {
	e := c.edges
	if err := e.model.g.self.checkHandle(e.source); err != nil {
		return err
	}
	id := c.c.ID()
	if e.model.hasReverseFor(e.source, id) {
		t, err := e.model.resolve(id, e.source)
		if err != nil {
			return err
		}
		if t == nil {
			return psgs.Corruptedf("%s edge of %s to missing node %d", e.model.name, e.source, id)
		}
		if err := e.model.reverse.putReverse(e.source, t, d); err != nil {
			return err
		}
	}
	if err := e.source.OnChange(); err != nil {
		return err
	}
	c.c.SetValue(d)
	return nil
}

// Remove removes the current edge on both sides.
func (c *EdgeCursor[D]) Remove() error {
	e := c.edges
	if err := e.model.g.self.checkHandle(e.source); err != nil {
		return err
	}
	if err := e.removeReverseFor(c.c.ID()); err != nil {
		return err
	}
	if err := e.source.OnChange(); err != nil {
		return err
	}
	c.c.Remove()
	return nil
}

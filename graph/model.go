package graph

import (
	"github.com/psgs/psgs/psgs"
	"github.com/psgs/psgs/record"
)

// ModelDef is a graph-independent edge model definition.  Definitions are
// created by the constructors below, registered in a Schema, and bound to a
// graph with In.
type ModelDef interface {
	Name() string

	// ReverseName is the name of the model maintained on edge targets.  It is
	// empty for arcs and equal to Name for undirected models.
	ReverseName() string

	// Unique reports whether a node has at most one edge of this model.
	Unique() bool

	reverseDef() ModelDef
	newModel(g *graphBase, id uint8) anyModel
	link(m, rev anyModel)
}

// MultiDef defines a model where a node has any number of edges.
type MultiDef[D any] struct {
	name    string
	codec   record.Codec[D]
	reverse ModelDef
}

// UniqueDef defines a model where a node has at most one edge.
type UniqueDef[D any] struct {
	name    string
	codec   record.Codec[D]
	reverse ModelDef
}

// Arc defines a one-way multi edge model.  Targets are unaware of their arcs and
// need not exist.
func Arc[D any](name string, codec record.Codec[D]) *MultiDef[D] {
	return &MultiDef[D]{name: name, codec: codec}
}

// Undirected defines a multi edge model that is its own reverse.
func Undirected[D any](name string, codec record.Codec[D]) *MultiDef[D] {
	def := &MultiDef[D]{name: name, codec: codec}
	def.reverse = def
	return def
}

// Directed defines a multi edge model and its reverse model.
func Directed[D any](name, reverseName string, codec record.Codec[D]) (*MultiDef[D], *MultiDef[D]) {
	fwd := &MultiDef[D]{name: name, codec: codec}
	rev := &MultiDef[D]{name: reverseName, codec: codec}
	fwd.reverse, rev.reverse = rev, fwd
	return fwd, rev
}

// UniqueArc defines a one-way model with at most one edge per node.
func UniqueArc[D any](name string, codec record.Codec[D]) *UniqueDef[D] {
	return &UniqueDef[D]{name: name, codec: codec}
}

// UniqueUndirected defines a pairing: each node has at most one partner, and
// partnering with a node takes it away from its previous partner.
func UniqueUndirected[D any](name string, codec record.Codec[D]) *UniqueDef[D] {
	def := &UniqueDef[D]{name: name, codec: codec}
	def.reverse = def
	return def
}

// UniqueDirected defines a many-to-one model: each node points to at most one
// target, and the reverse multi model lists the sources pointing to a node.
func UniqueDirected[D any](name, reverseName string, codec record.Codec[D]) (*UniqueDef[D], *MultiDef[D]) {
	fwd := &UniqueDef[D]{name: name, codec: codec}
	rev := &MultiDef[D]{name: reverseName, codec: codec}
	fwd.reverse, rev.reverse = rev, fwd
	return fwd, rev
}

// UniqueBidirected defines a one-to-one model between two roles.
func UniqueBidirected[D any](name, reverseName string, codec record.Codec[D]) (*UniqueDef[D], *UniqueDef[D]) {
	fwd := &UniqueDef[D]{name: name, codec: codec}
	rev := &UniqueDef[D]{name: reverseName, codec: codec}
	fwd.reverse, rev.reverse = rev, fwd
	return fwd, rev
}

func (def *MultiDef[D]) Name() string         { return def.name }
func (def *MultiDef[D]) Unique() bool         { return false }
func (def *MultiDef[D]) reverseDef() ModelDef { return def.reverse }

func (def *MultiDef[D]) ReverseName() string {
	if def.reverse == nil {
		return ""
	}
	return def.reverse.Name()
}

// In returns the model instance of graph g, creating it and its reverse on
// first use.
func (def *MultiDef[D]) In(g Graph) (*EdgeModel[D], error) {
	m, err := g.base().modelFor(def)
	if err != nil {
		return nil, err
	}
	return m.(*EdgeModel[D]), nil
}

func (def *MultiDef[D]) newModel(g *graphBase, id uint8) anyModel {
	return &EdgeModel[D]{modelCore: modelCore{g: g, id: id, name: def.name}, codec: def.codec}
}

func (def *MultiDef[D]) link(m, rev anyModel) {
	em := m.(*EdgeModel[D])
	em.reverse = rev.(model[D])
	em.self = m == rev
}

func (def *UniqueDef[D]) Name() string         { return def.name }
func (def *UniqueDef[D]) Unique() bool         { return true }
func (def *UniqueDef[D]) reverseDef() ModelDef { return def.reverse }

func (def *UniqueDef[D]) ReverseName() string {
	if def.reverse == nil {
		return ""
	}
	return def.reverse.Name()
}

// In returns the model instance of graph g, creating it and its reverse on
// first use.
func (def *UniqueDef[D]) In(g Graph) (*UniqueModel[D], error) {
	m, err := g.base().modelFor(def)
	if err != nil {
		return nil, err
	}
	return m.(*UniqueModel[D]), nil
}

func (def *UniqueDef[D]) newModel(g *graphBase, id uint8) anyModel {
	return &UniqueModel[D]{modelCore: modelCore{g: g, id: id, name: def.name}, codec: def.codec}
}

func (def *UniqueDef[D]) link(m, rev anyModel) {
	um := m.(*UniqueModel[D])
	um.reverse = rev.(model[D])
	um.self = m == rev
}

// anyModel is a model instance regardless of its payload type.
type anyModel interface {
	ID() uint8
	Name() string
	Unique() bool

	// decode reads a persisted adjacency entry of node n.
	decode(n *Node, entry []byte) (adjacent, error)
}

// model is the reverse maintenance contract between a model and its reverse.
// Each method runs on the model whose containers are on the target side.
type model[D any] interface {
	anyModel

	// putReverse records source under target with data d.  A unique reverse
	// evicts a previous different source first.
	putReverse(source, target *Node, d D) error

	// removeReverse forgets source under target.
	removeReverse(source, target *Node) error

	// dropLocal removes targetID from holder's edges without any reverse
	// maintenance.  It is used for evictions.
	dropLocal(holder *Node, targetID uint32) error
}

type modelCore struct {
	g    *graphBase
	id   uint8
	name string
}

func (m *modelCore) ID() uint8 {
	return m.id
}

func (m *modelCore) Name() string {
	return m.name
}

// resolve returns the node with the given id for a change, preferring already
// resolved nodes so a node is never represented twice.
func (m *modelCore) resolve(id uint32, known ...*Node) (*Node, error) {
	for _, n := range known {
		if n != nil && n.id == id {
			return n, nil
		}
	}
	return m.g.self.nodeForChange(id)
}

// checkSource verifies n can be read or changed through this model.
func (m *modelCore) checkSource(n *Node) error {
	if n == nil || n.g == nil {
		return psgs.ErrNodeNotInGraph
	}
	if n.g != m.g.self {
		return psgs.ErrCrossGraph
	}
	return nil
}

/*
Package graph implements an embedded graph store of typed nodes and edges.

Nodes carry a NodeData payload and any number of edges grouped by edge model.
Models are declared once in a Schema and come in arc, undirected, directed and
unique flavors; every edge change through a model also updates its reverse model
on the target so both sides always agree.

A graph is either built in memory with NewGraph and written with Write, or
opened from a directory with Open (read-only) or CopyForUpdating.  An opened
graph loads nodes lazily from a memory-mapped data file through the node index,
keeps changed nodes in an overlay, and on Close writes a compacted copy in which
unchanged node records are moved without being decoded.

Graphs are not safe for concurrent use.
*/
package graph

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/psgs/psgs/psgs"
)

// Graph is the set of operations shared by in-memory and persistent graphs.
type Graph interface {
	Schema() *Schema
	ByteOrder() binary.ByteOrder

	// NodeCount returns the number of live nodes.
	NodeCount() int64

	// Node returns the node with the given id, or nil if there is none.
	Node(id uint32) (*Node, error)

	// AddNode attaches an unattached node under a fresh id.
	AddNode(n *Node) error

	// GetOrCreateNode returns the node with the given id, attaching the node
	// returned by create under that id if there is none.
	GetOrCreateNode(id uint32, create func(id uint32) *Node) (*Node, error)

	// IsNodeIDUsed reports whether a live node has the given id.
	IsNodeIDUsed(id uint32) (bool, error)

	// RemoveNode removes all edges of n, including the reverse side on other
	// nodes, and detaches it.
	RemoveNode(n *Node) error

	// RemoveNodeByID removes the node with the given id and reports whether it
	// existed.
	RemoveNodeByID(id uint32) (bool, error)

	// ForEachNode calls fn for each live node in ascending id order, except for
	// nodes changed since opening which come last.  Adding or removing nodes
	// during the walk isn't supported.
	ForEachNode(fn func(*Node) error) error

	Close() error

	base() *graphBase
}

// graphImpl is implemented by each kind of graph for the shared code.
type graphImpl interface {
	Graph

	// nodeForChange returns the node with the given id prepared for a change.
	nodeForChange(id uint32) (*Node, error)

	// checkHandle verifies n is the live node object of this graph for its id.
	checkHandle(n *Node) error

	// nodeChanged is called the first time an attached node changes.
	nodeChanged(n *Node) error

	// attach stores n, whose id and type are set, as a live node.
	attach(n *Node) error
}

// registry assigns 1-byte ids to names.  Id 0 is reserved.
type registry struct {
	what  string
	ids   map[string]uint8
	names []string
}

func newRegistry(what string) registry {
	return registry{what: what, ids: make(map[string]uint8), names: []string{""}}
}

func (r *registry) assign(name string) (uint8, error) {
	if id, found := r.ids[name]; found {
		return id, nil
	}
	if len(r.names) > math.MaxUint8 {
		return 0, fmt.Errorf("%w: can't add %s %q", psgs.ErrTooManyTypes, r.what, name)
	}
	id := uint8(len(r.names))
	r.ids[name] = id
	r.names = append(r.names, name)
	return id, nil
}

// assignAll assigns ids to all names, or to none of them if they don't fit.
func (r *registry) assignAll(names ...string) ([]uint8, error) {
	missing := 0
	for _, name := range names {
		if _, found := r.ids[name]; !found {
			missing++
		}
	}
	if len(r.names)+missing > math.MaxUint8+1 {
		return nil, fmt.Errorf("%w: can't add %s %q", psgs.ErrTooManyTypes, r.what, names[0])
	}
	ids := make([]uint8, len(names))
	for i, name := range names {
		id, err := r.assign(name)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func (r *registry) name(id uint8) (string, bool) {
	if id == 0 || int(id) >= len(r.names) || r.names[id] == "" {
		return "", false
	}
	return r.names[id], true
}

// load restores a persisted name to id table.
func (r *registry) load(table map[string]uint8) error {
	for name, id := range table {
		if id == 0 || name == "" {
			return psgs.BadStatef("bad %s table entry %q: %d", r.what, name, id)
		}
		for int(id) >= len(r.names) {
			r.names = append(r.names, "")
		}
		if r.names[id] != "" {
			return psgs.BadStatef("%s id %d used by both %q and %q", r.what, id, r.names[id], name)
		}
		r.names[id] = name
		r.ids[name] = id
	}
	return nil
}

func (r *registry) table() map[string]uint8 {
	out := make(map[string]uint8, len(r.ids))
	for name, id := range r.ids {
		out[name] = id
	}
	return out
}

// graphBase holds the state shared by all graph kinds.
type graphBase struct {
	self   graphImpl
	schema *Schema
	cfg    Config
	order  binary.ByteOrder

	types    registry
	modelIDs registry
	models   map[string]anyModel
	byID     [math.MaxUint8 + 1]anyModel

	nodeCount int64
	minBound  uint32
	maxBound  uint32
	probe     uint32

	closed bool
}

func newGraphBase(self graphImpl, schema *Schema, cfg Config, order binary.ByteOrder) graphBase {
	return graphBase{
		self:     self,
		schema:   schema,
		cfg:      cfg,
		order:    order,
		types:    newRegistry("node type"),
		modelIDs: newRegistry("edge model"),
		models:   make(map[string]anyModel),
	}
}

func (g *graphBase) base() *graphBase {
	return g
}

func (g *graphBase) Schema() *Schema {
	return g.schema
}

func (g *graphBase) ByteOrder() binary.ByteOrder {
	return g.order
}

func (g *graphBase) NodeCount() int64 {
	return g.nodeCount
}

func (g *graphBase) checkOpen() error {
	if g.closed {
		return psgs.Usagef("graph is closed")
	}
	return nil
}

// modelFor returns the instance of def, creating it and its reverse.  Both get
// registered or neither does.
func (g *graphBase) modelFor(def ModelDef) (anyModel, error) {
	if m, found := g.models[def.Name()]; found {
		return m, nil
	}
	defs := []ModelDef{def}
	if rev := def.reverseDef(); rev != nil && rev != def {
		defs = append(defs, rev)
	}
	names := make([]string, len(defs))
	for i, d := range defs {
		if err := g.schema.checkModel(d); err != nil {
			return nil, err
		}
		names[i] = d.Name()
	}
	ids, err := g.modelIDs.assignAll(names...)
	if err != nil {
		return nil, err
	}
	ms := make([]anyModel, len(defs))
	for i, d := range defs {
		ms[i] = d.newModel(g, ids[i])
	}
	switch {
	case len(ms) == 2:
		def.link(ms[0], ms[1])
		defs[1].link(ms[1], ms[0])
	case def.reverseDef() == def:
		def.link(ms[0], ms[0])
	}
	for i, m := range ms {
		g.models[names[i]] = m
		g.byID[ids[i]] = m
	}
	return ms[0], nil
}

// modelByID returns the instance of a model persisted under id.
func (g *graphBase) modelByID(id uint8) (anyModel, error) {
	if m := g.byID[id]; m != nil {
		return m, nil
	}
	def, err := g.modelDefByID(id)
	if err != nil {
		return nil, err
	}
	return g.modelFor(def)
}

func (g *graphBase) modelDefByID(id uint8) (ModelDef, error) {
	name, found := g.modelIDs.name(id)
	if !found {
		return nil, psgs.Corruptedf("unknown edge model id %d", id)
	}
	def, found := g.schema.models[name]
	if !found {
		return nil, psgs.BadStatef("edge model %q isn't in the schema", name)
	}
	return def, nil
}

// newNodeData returns an empty payload for a persisted type id.
func (g *graphBase) newNodeData(typeID uint8) (NodeData, error) {
	name, found := g.types.name(typeID)
	if !found {
		return nil, psgs.Corruptedf("unknown node type id %d", typeID)
	}
	data, err := g.schema.newData(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", psgs.ErrBadPersistedState, err)
	}
	return data, nil
}

// prepareAttach validates an unattached node and assigns its type id.
func (g *graphBase) prepareAttach(n *Node) error {
	if n == nil || n.data == nil {
		return psgs.Usagef("node needs a payload")
	}
	if n.g != nil {
		return psgs.ErrNodeAttached
	}
	if n.id != 0 {
		return psgs.Usagef("removed node %d can't be added again", n.id)
	}
	name := n.data.TypeName()
	if _, found := g.schema.types[name]; !found {
		return fmt.Errorf("%w: %q", psgs.ErrUnknownType, name)
	}
	typeID, err := g.types.assign(name)
	if err != nil {
		return err
	}
	n.typeID = typeID
	return nil
}

// noteID widens the id bounds.  A zero minBound means no id was used yet.
func (g *graphBase) noteID(id uint32) {
	if g.minBound == 0 || id < g.minBound {
		g.minBound = id
	}
	if id > g.maxBound {
		g.maxBound = id
	}
}

// freshID returns an unused id.  Ids are handed out in increasing order until the
// id space is exhausted, then free ids are searched linearly.
func (g *graphBase) freshID() (uint32, error) {
	if g.maxBound < math.MaxUint32 {
		return g.maxBound + 1, nil
	}
	if g.nodeCount >= math.MaxUint32 {
		return 0, psgs.Usagef("all node ids are used")
	}
	for {
		g.probe++
		if g.probe == 0 {
			g.probe = 1
		}
		used, err := g.self.IsNodeIDUsed(g.probe)
		if err != nil {
			return 0, err
		}
		if !used {
			return g.probe, nil
		}
	}
}

// AddNode attaches n under a fresh id.
func (g *graphBase) AddNode(n *Node) error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	if err := g.prepareAttach(n); err != nil {
		return err
	}
	id, err := g.freshID()
	if err != nil {
		return err
	}
	n.id = id
	return g.finishAttach(n)
}

func (g *graphBase) finishAttach(n *Node) error {
	n.g = g.self
	n.dirty = true
	if err := g.self.attach(n); err != nil {
		n.g, n.id, n.dirty = nil, 0, false
		return err
	}
	g.noteID(n.id)
	g.nodeCount++
	return nil
}

// GetOrCreateNode returns the node with the given id or attaches a new one.
func (g *graphBase) GetOrCreateNode(id uint32, create func(id uint32) *Node) (*Node, error) {
	if err := g.checkOpen(); err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, psgs.ErrZeroNodeID
	}
	n, err := g.self.Node(id)
	if err != nil || n != nil {
		return n, err
	}
	n = create(id)
	if err := g.prepareAttach(n); err != nil {
		return nil, err
	}
	n.id = id
	if err := g.finishAttach(n); err != nil {
		return nil, err
	}
	return n, nil
}

// RemoveNodeByID removes the node with the given id.
func (g *graphBase) RemoveNodeByID(id uint32) (bool, error) {
	n, err := g.self.Node(id)
	if err != nil || n == nil {
		return false, err
	}
	if err := g.self.RemoveNode(n); err != nil {
		return false, err
	}
	return true, nil
}

// removeNode runs the shared part of node removal: edge cleanup and detaching.
func (g *graphBase) removeNode(n *Node) error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	if n == nil {
		return psgs.ErrNodeNotInGraph
	}
	if n.g != nil && n.g != g.self {
		return psgs.ErrCrossGraph
	}
	if err := g.self.checkHandle(n); err != nil {
		return err
	}
	if err := n.removeFromGraph(); err != nil {
		return err
	}
	g.nodeCount--
	return nil
}

package graph

import (
	"encoding/binary"
	"fmt"

	"github.com/psgs/psgs/psgs"
	"github.com/psgs/psgs/record"
)

// UniqueModel is a model with at most one edge per source node, bound to a
// graph.
type UniqueModel[D any] struct {
	modelCore
	codec   record.Codec[D]
	reverse model[D]
	self    bool
}

func (m *UniqueModel[D]) Unique() bool { return true }

// From returns the edge slot of model m on n.  The slot is unset if n has no
// such edge.
func (m *UniqueModel[D]) From(n *Node) (*UniqueEdge[D], error) {
	if err := m.checkSource(n); err != nil {
		return nil, err
	}
	return m.slotOf(n), nil
}

// IsPresentFrom reports whether n has an edge of this model.
func (m *UniqueModel[D]) IsPresentFrom(n *Node) bool {
	if m.checkSource(n) != nil {
		return false
	}
	a := n.adj.get(m.id)
	return a != nil && a.(*UniqueEdge[D]).target != 0
}

// RemoveFrom removes the edge of n, if any.
func (m *UniqueModel[D]) RemoveFrom(n *Node) error {
	u, err := m.From(n)
	if err != nil {
		return err
	}
	return u.Remove()
}

// Set points source at target with data d.
func (m *UniqueModel[D]) Set(source, target *Node, d D) error {
	if err := m.checkSource(target); err != nil {
		return err
	}
	return m.SetTo(source, target.id, d)
}

// SetTo points source at the node with id targetID with data d.
func (m *UniqueModel[D]) SetTo(source *Node, targetID uint32, d D) error {
	u, err := m.From(source)
	if err != nil {
		return err
	}
	return u.SetTo(targetID, d)
}

func (m *UniqueModel[D]) slotOf(n *Node) *UniqueEdge[D] {
	if a := n.adj.get(m.id); a != nil {
		return a.(*UniqueEdge[D])
	}
	u := &UniqueEdge[D]{model: m, source: n}
	n.adj.put(u)
	return u
}

func (m *UniqueModel[D]) hasReverseFor(source *Node, targetID uint32) bool {
	return m.reverse != nil && !(m.self && targetID == source.id)
}

func (m *UniqueModel[D]) putReverse(source, target *Node, d D) error {
	u := m.slotOf(target)
	if u.target != source.id && u.target != 0 {
		old, err := m.resolve(u.target, source, target)
		if err != nil {
			return err
		}
		if old == nil {
			return psgs.Corruptedf("%s edge of %s to missing node %d", m.name, target, u.target)
		}
		if err := m.reverse.dropLocal(old, target.id); err != nil {
			return err
		}
	}
	if err := target.OnChange(); err != nil {
		return err
	}
	u.target, u.data = source.id, d
	return nil
}

func (m *UniqueModel[D]) removeReverse(source, target *Node) error {
	u := m.slotOf(target)
	if u.target != source.id {
		return psgs.Corruptedf("%s edge of %s should point to node %d, not %d", m.name, target, source.id, u.target)
	}
	if err := target.OnChange(); err != nil {
		return err
	}
	u.unset()
	return nil
}

func (m *UniqueModel[D]) dropLocal(holder *Node, targetID uint32) error {
	u := m.slotOf(holder)
	if u.target != targetID {
		return nil
	}
	if err := holder.OnChange(); err != nil {
		return err
	}
	u.unset()
	return nil
}

func (m *UniqueModel[D]) decode(n *Node, entry []byte) (adjacent, error) {
	size := m.codec.Size()
	if len(entry) != 4+size {
		return nil, psgs.Corruptedf("%s edge of node %d has %d bytes, expected %d", m.name, n.id, len(entry), 4+size)
	}
	order := m.g.order
	return &UniqueEdge[D]{
		model:  m,
		source: n,
		target: order.Uint32(entry[0:4]),
		data:   m.codec.Get(order, entry[4:]),
	}, nil
}

// UniqueEdge is the edge slot of a unique model on a node.
type UniqueEdge[D any] struct {
	model  *UniqueModel[D]
	source *Node
	target uint32
	data   D
}

func (u *UniqueEdge[D]) owner() anyModel {
	return u.model
}

func (u *UniqueEdge[D]) Source() *Node {
	return u.source
}

// TargetID returns the target id, or 0 if unset.
func (u *UniqueEdge[D]) TargetID() uint32 {
	return u.target
}

// IsSet reports whether the slot holds an edge.
func (u *UniqueEdge[D]) IsSet() bool {
	return u.target != 0
}

// Target returns the target node, or nil if unset.
func (u *UniqueEdge[D]) Target() (*Node, error) {
	if u.target == 0 {
		return nil, nil
	}
	return u.model.g.self.Node(u.target)
}

// Data returns the edge data.
func (u *UniqueEdge[D]) Data() D {
	return u.data
}

// SetData updates the data of the current edge on both sides.
func (u *UniqueEdge[D]) SetData(d D) error {
	if u.target == 0 {
		return psgs.Usagef("%s edge of %s isn't set", u.model.name, u.source)
	}
	return u.SetTo(u.target, d)
}

// SetToNode points the slot at target.
func (u *UniqueEdge[D]) SetToNode(target *Node, d D) error {
	if err := u.model.checkSource(target); err != nil {
		return err
	}
	return u.SetTo(target.id, d)
}

// SetTo points the slot at targetID, removing the previous edge, and, for
// models with a unique reverse, evicting the target's previous source.
func (u *UniqueEdge[D]) SetTo(targetID uint32, d D) error {
	m, src := u.model, u.source
	if err := m.g.self.checkHandle(src); err != nil {
		return err
	}
	if targetID == 0 {
		return psgs.ErrZeroNodeID
	}
	var target, old *Node
	var err error
	if m.hasReverseFor(src, targetID) {
		if target, err = m.resolve(targetID, src); err != nil {
			return err
		}
		if target == nil {
			return fmt.Errorf("%w: node %d", psgs.ErrUnknownTarget, targetID)
		}
	}
	if u.target != 0 && u.target != targetID && m.hasReverseFor(src, u.target) {
		if old, err = m.resolve(u.target, src, target); err != nil {
			return err
		}
		if old == nil {
			return psgs.Corruptedf("%s edge of %s to missing node %d", m.name, src, u.target)
		}
	}
	if old != nil {
		if err := m.reverse.removeReverse(src, old); err != nil {
			return err
		}
	}
	if target != nil {
		if err := m.reverse.putReverse(src, target, d); err != nil {
			return err
		}
	}
	if err := src.OnChange(); err != nil {
		return err
	}
	u.target, u.data = targetID, d
	return nil
}

// Remove unsets the slot and removes the reverse edge.
func (u *UniqueEdge[D]) Remove() error {
	if u.target == 0 {
		return nil
	}
	m, src := u.model, u.source
	if err := m.g.self.checkHandle(src); err != nil {
		return err
	}
	if m.hasReverseFor(src, u.target) {
		t, err := m.resolve(u.target, src)
		if err != nil {
			return err
		}
		if t == nil {
			return psgs.Corruptedf("%s edge of %s to missing node %d", m.name, src, u.target)
		}
		if err := m.reverse.removeReverse(src, t); err != nil {
			return err
		}
	}
	if err := src.OnChange(); err != nil {
		return err
	}
	u.unset()
	return nil
}

func (u *UniqueEdge[D]) unset() {
	var zero D
	u.target, u.data = 0, zero
}

func (u *UniqueEdge[D]) count() int {
	if u.target == 0 {
		return 0
	}
	return 1
}

func (u *UniqueEdge[D]) clear() error {
	return u.Remove()
}

func (u *UniqueEdge[D]) encode(b []byte, order binary.ByteOrder) []byte {
	b = psgs.AppendUint32(order, b, u.target)
	rec := make([]byte, u.model.codec.Size())
	u.model.codec.Put(order, rec, u.data)
	return append(b, rec...)
}

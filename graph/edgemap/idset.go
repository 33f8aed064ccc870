package edgemap

import (
	"encoding/binary"
	"iter"

	"github.com/psgs/psgs/psgs"
)

// IDSet is a Map for edge models without data.  Only ids are stored and every
// value is the zero D.
type IDSet[D any] struct {
	idIndex
	order binary.ByteOrder
}

// NewIDSet returns an empty IDSet.
func NewIDSet[D any](expected int, order binary.ByteOrder) *IDSet[D] {
	s := &IDSet[D]{order: order}
	s.init(expected)
	return s
}

func (s *IDSet[D]) Order() binary.ByteOrder {
	return s.order
}

func (s *IDSet[D]) Get(id uint32) (d D, found bool) {
	return d, s.Contains(id)
}

func (s *IDSet[D]) Add(id uint32, _ D) (prev D, existed bool) {
	_, isNew := s.insert(id)
	return prev, !isNew
}

func (s *IDSet[D]) JustAdd(id uint32, _ D) bool {
	_, isNew := s.insert(id)
	return isNew
}

func (s *IDSet[D]) Remove(id uint32) (d D, found bool) {
	_, _, found = s.delete(id)
	return
}

func (s *IDSet[D]) JustRemove(id uint32) bool {
	_, _, found := s.delete(id)
	return found
}

func (s *IDSet[D]) ForEach(fn func(id uint32, d D)) {
	var zero D
	for _, id := range s.ids {
		fn(id, zero)
	}
}

func (s *IDSet[D]) TestWhile(fn func(id uint32, d D) bool) bool {
	var zero D
	for _, id := range s.ids {
		if !fn(id, zero) {
			return false
		}
	}
	return true
}

func (s *IDSet[D]) All() iter.Seq2[uint32, D] {
	return func(yield func(uint32, D) bool) {
		var zero D
		for pos := 0; pos < len(s.ids); pos++ {
			if !yield(s.ids[pos], zero) {
				return
			}
		}
	}
}

func (s *IDSet[D]) Cursor() *Cursor[D] {
	return newCursor[D](s)
}

func (s *IDSet[D]) EncodedSize() int {
	return HeaderSize + 4*len(s.ids)
}

func (s *IDSet[D]) AppendTo(b []byte, order binary.ByteOrder) []byte {
	b = psgs.AppendUint32(order, b, uint32(len(s.ids)))
	b = psgs.AppendUint32(order, b, psgs.OrderMarker(s.order))
	for _, id := range s.ids {
		b = psgs.AppendUint32(order, b, id)
	}
	return b
}

func (s *IDSet[D]) valueAt(int) (d D) { return }

func (s *IDSet[D]) setValueAt(int, D) {}

func (s *IDSet[D]) removeAt(pos int) {
	s.deleteAt(pos)
}

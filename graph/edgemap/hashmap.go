package edgemap

import (
	"encoding/binary"
	"iter"

	"github.com/psgs/psgs/psgs"
	"github.com/psgs/psgs/record"
)

// HashMap is a Map whose records are packed in a flat buffer parallel to the
// dense id array.  Record i belongs to ids[i].
type HashMap[D any] struct {
	idIndex
	codec record.Codec[D]
	size  int
	order binary.ByteOrder
	data  []byte
}

// NewHashMap returns an empty HashMap.  Records are held in the given order.
func NewHashMap[D any](expected int, codec record.Codec[D], order binary.ByteOrder) *HashMap[D] {
	m := &HashMap[D]{codec: codec, size: codec.Size(), order: order}
	m.init(expected)
	m.data = make([]byte, cap(m.ids)*m.size)
	return m
}

func (m *HashMap[D]) rec(pos int) []byte {
	return m.data[pos*m.size : (pos+1)*m.size]
}

// slot inserts id if needed and returns its position, keeping the record
// buffer as large as the id capacity.
func (m *HashMap[D]) slot(id uint32) (int, bool) {
	pos, isNew := m.insert(id)
	if need := cap(m.ids) * m.size; len(m.data) < need {
		data := make([]byte, need)
		copy(data, m.data)
		m.data = data
	}
	return pos, isNew
}

func (m *HashMap[D]) putRaw(id uint32, rec []byte) {
	pos, _ := m.slot(id)
	copy(m.rec(pos), rec)
}

func (m *HashMap[D]) Order() binary.ByteOrder {
	return m.order
}

func (m *HashMap[D]) Get(id uint32) (d D, found bool) {
	pos := m.find(id)
	if pos < 0 {
		return
	}
	return m.valueAt(pos), true
}

func (m *HashMap[D]) Add(id uint32, d D) (prev D, existed bool) {
	pos, isNew := m.slot(id)
	if !isNew {
		prev, existed = m.valueAt(pos), true
	}
	m.setValueAt(pos, d)
	return
}

func (m *HashMap[D]) JustAdd(id uint32, d D) bool {
	pos, isNew := m.slot(id)
	m.setValueAt(pos, d)
	return isNew
}

func (m *HashMap[D]) Remove(id uint32) (d D, found bool) {
	pos := m.find(id)
	if pos < 0 {
		return
	}
	d = m.valueAt(pos)
	m.removeAt(pos)
	return d, true
}

func (m *HashMap[D]) JustRemove(id uint32) bool {
	pos := m.find(id)
	if pos < 0 {
		return false
	}
	m.removeAt(pos)
	return true
}

func (m *HashMap[D]) ForEach(fn func(id uint32, d D)) {
	for pos, id := range m.ids {
		fn(id, m.valueAt(pos))
	}
}

func (m *HashMap[D]) TestWhile(fn func(id uint32, d D) bool) bool {
	for pos, id := range m.ids {
		if !fn(id, m.valueAt(pos)) {
			return false
		}
	}
	return true
}

func (m *HashMap[D]) All() iter.Seq2[uint32, D] {
	return func(yield func(uint32, D) bool) {
		for pos := 0; pos < len(m.ids); pos++ {
			if !yield(m.ids[pos], m.valueAt(pos)) {
				return
			}
		}
	}
}

func (m *HashMap[D]) Cursor() *Cursor[D] {
	return newCursor[D](m)
}

func (m *HashMap[D]) EncodedSize() int {
	return HeaderSize + len(m.ids)*(4+m.size)
}

func (m *HashMap[D]) AppendTo(b []byte, order binary.ByteOrder) []byte {
	b = psgs.AppendUint32(order, b, uint32(len(m.ids)))
	b = psgs.AppendUint32(order, b, psgs.OrderMarker(m.order))
	for pos, id := range m.ids {
		b = psgs.AppendUint32(order, b, id)
		b = append(b, m.rec(pos)...)
	}
	return b
}

func (m *HashMap[D]) valueAt(pos int) D {
	return m.codec.Get(m.order, m.rec(pos))
}

func (m *HashMap[D]) setValueAt(pos int, d D) {
	m.codec.Put(m.order, m.rec(pos), d)
}

func (m *HashMap[D]) removeAt(pos int) {
	last := m.deleteAt(pos)
	if last != pos {
		copy(m.rec(pos), m.rec(last))
	}
	clear(m.rec(last))
}

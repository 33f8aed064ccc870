// Package edgemap implements maps keyed by node id that hold fixed-size edge
// records.
//
// Records live packed in a single growable byte buffer, so a node's edges cost
// one id plus the record size each.  Keys are kept dense: removing a key moves
// the last key and record into the freed position.  Iteration order is that
// dense order, which is also the order used when the map is encoded.
package edgemap

import (
	"encoding/binary"
	"iter"

	"github.com/psgs/psgs/psgs"
	"github.com/psgs/psgs/record"
)

// Map is a node id keyed container of D values.
type Map[D any] interface {
	Len() int
	IsEmpty() bool
	Contains(id uint32) bool

	// Get returns the value for id.
	Get(id uint32) (D, bool)

	// Add stores d under id and returns the value it replaced, if any.
	Add(id uint32, d D) (prev D, existed bool)

	// JustAdd stores d under id and reports whether id was new.
	JustAdd(id uint32, d D) bool

	// Remove deletes id and returns its value, if it was present.
	Remove(id uint32) (D, bool)

	// JustRemove deletes id and reports whether it was present.
	JustRemove(id uint32) bool

	ForEach(fn func(id uint32, d D))
	TestWhile(fn func(id uint32, d D) bool) bool
	ForEachID(fn func(id uint32))
	TestIDsWhile(fn func(id uint32) bool) bool
	IDs() []uint32

	// All iterates over ids and values.  The map must not be modified during
	// the iteration except through a Cursor.
	All() iter.Seq2[uint32, D]

	// Cursor returns a cursor positioned before the first entry.
	Cursor() *Cursor[D]

	// Order is the byte order of the records held in memory.
	Order() binary.ByteOrder

	// AppendTo encodes the map.  Ids are written in the given order and
	// records are copied raw, prefixed by a marker of the map's own order.
	AppendTo(b []byte, order binary.ByteOrder) []byte

	// EncodedSize is the number of bytes AppendTo adds.
	EncodedSize() int

	idAt(pos int) uint32
	valueAt(pos int) D
	setValueAt(pos int, d D)
	removeAt(pos int)
}

// New returns an empty map sized for the expected number of keys.  Codecs of
// zero size get an IDSet, others a HashMap.
func New[D any](expected int, codec record.Codec[D], order binary.ByteOrder) Map[D] {
	if codec.Size() == 0 {
		return NewIDSet[D](expected, order)
	}
	return NewHashMap(expected, codec, order)
}

// HeaderSize is the size of the count and byte order marker preceding entries.
const HeaderSize = 8

// Decode reads a map written by AppendTo.  Ids are read with the given order and
// records keep the order named by the encoded marker.  Decode returns the map and
// the number of bytes consumed.
func Decode[D any](b []byte, order binary.ByteOrder, codec record.Codec[D]) (Map[D], int, error) {
	if len(b) < HeaderSize {
		return nil, 0, psgs.Corruptedf("edge map header needs %d bytes, have %d", HeaderSize, len(b))
	}
	count := int(order.Uint32(b[0:4]))
	recOrder, err := psgs.OrderFromMarker(order.Uint32(b[4:8]))
	if err != nil {
		return nil, 0, err
	}
	size := codec.Size()
	n := HeaderSize + count*(4+size)
	if count < 0 || n > len(b) {
		return nil, 0, psgs.Corruptedf("edge map of %d entries exceeds %d available bytes", count, len(b))
	}
	m := New(count, codec, recOrder)
	pos := HeaderSize
	switch t := m.(type) {
	case *HashMap[D]:
		for i := 0; i < count; i++ {
			id := order.Uint32(b[pos:])
			pos += 4
			t.putRaw(id, b[pos:pos+size])
			pos += size
		}
	case *IDSet[D]:
		for i := 0; i < count; i++ {
			t.insert(order.Uint32(b[pos:]))
			pos += 4
		}
	}
	if m.Len() != count {
		return nil, 0, psgs.Corruptedf("edge map declares %d entries but holds %d distinct ids", count, m.Len())
	}
	return m, n, nil
}

// Cursor walks a map in dense order and allows removing or updating the current
// entry without disturbing the walk.
type Cursor[D any] struct {
	m       Map[D]
	pos     int
	removed bool
}

// Next advances the cursor and reports whether an entry is available.
func (c *Cursor[D]) Next() bool {
	if c.removed {
		// The last entry was moved into the current position.
		c.removed = false
	} else {
		c.pos++
	}
	return c.pos < c.m.Len()
}

// ID returns the current key.
func (c *Cursor[D]) ID() uint32 {
	return c.m.idAt(c.pos)
}

// Value returns the current value.
func (c *Cursor[D]) Value() D {
	return c.m.valueAt(c.pos)
}

// SetValue replaces the current value.
func (c *Cursor[D]) SetValue(d D) {
	c.m.setValueAt(c.pos, d)
}

// Remove deletes the current entry.  Calling it twice before Next is a no-op.
func (c *Cursor[D]) Remove() {
	if c.removed {
		return
	}
	c.m.removeAt(c.pos)
	c.removed = true
}

func newCursor[D any](m Map[D]) *Cursor[D] {
	return &Cursor[D]{m: m, pos: -1}
}

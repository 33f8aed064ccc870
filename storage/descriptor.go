package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/psgs/psgs/psgs"
)

// DescriptorSize is the number of bytes of an encoded Descriptor.
const DescriptorSize = 8

// Descriptor locates a node record in the data file.
type Descriptor struct {
	TypeID   uint8
	AdjCount uint8
	Offset   uint64
}

func (d Descriptor) String() string {
	return fmt.Sprintf("type %d, %d adjacency entries @ %d", d.TypeID, d.AdjCount, d.Offset)
}

// Put encodes d into b[:DescriptorSize].
func (d Descriptor) Put(order binary.ByteOrder, b []byte) {
	b[0] = d.TypeID
	b[1] = d.AdjCount
	psgs.PutOffset48(order, b[2:DescriptorSize], d.Offset)
}

// Bytes returns a new encoding of d.
func (d Descriptor) Bytes(order binary.ByteOrder) []byte {
	b := make([]byte, DescriptorSize)
	d.Put(order, b)
	return b
}

// DecodeDescriptor reads a descriptor written by Put.
func DecodeDescriptor(order binary.ByteOrder, b []byte) (Descriptor, error) {
	if len(b) != DescriptorSize {
		return Descriptor{}, psgs.Corruptedf("descriptor has %d bytes, expected %d", len(b), DescriptorSize)
	}
	return Descriptor{
		TypeID:   b[0],
		AdjCount: b[1],
		Offset:   psgs.Offset48(order, b[2:DescriptorSize]),
	}, nil
}

// IndexKey returns the key bytes for a node id.  Keys are big endian whatever the
// graph byte order, so byte-wise key order is id order.
func IndexKey(id uint32) []byte {
	return binary.BigEndian.AppendUint32(make([]byte, 0, 4), id)
}

// IDFromKey is the inverse of IndexKey.
func IDFromKey(k []byte) (uint32, error) {
	if len(k) != 4 {
		return 0, psgs.Corruptedf("index key has %d bytes", len(k))
	}
	return binary.BigEndian.Uint32(k), nil
}

// Package record defines fixed-size binary codecs for edge payload values.
//
// Every edge model declares one codec, and every payload it stores occupies exactly
// Size() bytes.  Edge containers keep payloads packed back to back in a flat
// buffer, so codecs must never read or write past Size() bytes.
package record

import (
	"encoding/binary"
	"math"
)

// Codec encodes and decodes values of a fixed record size.
type Codec[D any] interface {
	// Size is the number of bytes taken by each record.  A zero size means
	// the edge model carries no data, and containers keep only node ids.
	Size() int

	// Put writes d into b[:Size()].
	Put(order binary.ByteOrder, b []byte, d D)

	// Get reads a value from b[:Size()].
	Get(order binary.ByteOrder, b []byte) D
}

// Empty is the payload type of edge models without data.
type Empty struct{}

type emptyCodec struct{}

func (emptyCodec) Size() int                              { return 0 }
func (emptyCodec) Put(binary.ByteOrder, []byte, Empty)    {}
func (emptyCodec) Get(binary.ByteOrder, []byte) (e Empty) { return }

// NoData is the codec for Empty payloads.
var NoData Codec[Empty] = emptyCodec{}

type uint32Codec struct{}

func (uint32Codec) Size() int { return 4 }
func (uint32Codec) Put(order binary.ByteOrder, b []byte, d uint32) {
	order.PutUint32(b, d)
}
func (uint32Codec) Get(order binary.ByteOrder, b []byte) uint32 {
	return order.Uint32(b)
}

// Uint32 stores a 32-bit unsigned integer.
var Uint32 Codec[uint32] = uint32Codec{}

type int32Codec struct{}

func (int32Codec) Size() int { return 4 }
func (int32Codec) Put(order binary.ByteOrder, b []byte, d int32) {
	order.PutUint32(b, uint32(d))
}
func (int32Codec) Get(order binary.ByteOrder, b []byte) int32 {
	return int32(order.Uint32(b))
}

// Int32 stores a 32-bit signed integer.
var Int32 Codec[int32] = int32Codec{}

type uint64Codec struct{}

func (uint64Codec) Size() int { return 8 }
func (uint64Codec) Put(order binary.ByteOrder, b []byte, d uint64) {
	order.PutUint64(b, d)
}
func (uint64Codec) Get(order binary.ByteOrder, b []byte) uint64 {
	return order.Uint64(b)
}

// Uint64 stores a 64-bit unsigned integer.
var Uint64 Codec[uint64] = uint64Codec{}

type float32Codec struct{}

func (float32Codec) Size() int { return 4 }
func (float32Codec) Put(order binary.ByteOrder, b []byte, d float32) {
	order.PutUint32(b, math.Float32bits(d))
}
func (float32Codec) Get(order binary.ByteOrder, b []byte) float32 {
	return math.Float32frombits(order.Uint32(b))
}

// Float32 stores a 32-bit float, e.g. an edge weight.
var Float32 Codec[float32] = float32Codec{}

type float64Codec struct{}

func (float64Codec) Size() int { return 8 }
func (float64Codec) Put(order binary.ByteOrder, b []byte, d float64) {
	order.PutUint64(b, math.Float64bits(d))
}
func (float64Codec) Get(order binary.ByteOrder, b []byte) float64 {
	return math.Float64frombits(order.Uint64(b))
}

// Float64 stores a 64-bit float.
var Float64 Codec[float64] = float64Codec{}

// Bytes returns a codec for fixed-length byte arrays of n bytes.  Shorter values
// are zero padded and longer ones truncated.
func Bytes(n int) Codec[[]byte] {
	return bytesCodec(n)
}

type bytesCodec int

func (c bytesCodec) Size() int { return int(c) }
func (c bytesCodec) Put(_ binary.ByteOrder, b []byte, d []byte) {
	n := copy(b[:c], d)
	clear(b[n:c])
}
func (c bytesCodec) Get(_ binary.ByteOrder, b []byte) []byte {
	out := make([]byte, c)
	copy(out, b[:c])
	return out
}

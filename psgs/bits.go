package psgs

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	Kilo = 1 << 10
	Mega = 1 << 20
	Giga = 1 << 30
)

// MaxOffset is the largest data offset a 6-byte descriptor field can hold.
const MaxOffset = 1<<48 - 1

// RoundUp4 rounds n up to a multiple of 4.
func RoundUp4(n int) int {
	return (n + 3) &^ 3
}

// UpperPowerOf2 returns the smallest power of two >= n, with a minimum of 1.
func UpperPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Mix32 is the murmur3 32-bit finalizer.  It is used wherever node ids get
// hashed, since sequentially assigned ids are anything but random.
func Mix32(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x85ebca6b
	x ^= x >> 13
	x *= 0xc2b2ae35
	x ^= x >> 16
	return x
}

// PutOffset48 writes a data offset as a 16-bit high part followed by a 32-bit low part.
func PutOffset48(order binary.ByteOrder, b []byte, offset uint64) {
	order.PutUint16(b[0:2], uint16(offset>>32))
	order.PutUint32(b[2:6], uint32(offset))
}

// Offset48 reads an offset written by PutOffset48.
func Offset48(order binary.ByteOrder, b []byte) uint64 {
	high := uint64(order.Uint16(b[0:2]))
	low := uint64(order.Uint32(b[2:6]))
	return high<<32 | low
}

// AppendUint32 appends v to b in the given byte order.
func AppendUint32(order binary.ByteOrder, b []byte, v uint32) []byte {
	var buf [4]byte
	order.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}

// Byte order markers written before runs of raw records.
const (
	BigEndianMarker    uint32 = 0
	LittleEndianMarker uint32 = 0xFFFFFFFF
)

// OrderMarker returns the marker for the given byte order.  The marker value reads
// the same in either byte order.
func OrderMarker(order binary.ByteOrder) uint32 {
	if isBigEndian(order) {
		return BigEndianMarker
	}
	return LittleEndianMarker
}

func isBigEndian(order binary.ByteOrder) bool {
	var b [2]byte
	order.PutUint16(b[:], 1)
	return b[0] == 0
}

// OrderFromMarker is the inverse of OrderMarker.
func OrderFromMarker(marker uint32) (binary.ByteOrder, error) {
	switch marker {
	case BigEndianMarker:
		return binary.BigEndian, nil
	case LittleEndianMarker:
		return binary.LittleEndian, nil
	default:
		return nil, Corruptedf("bad byte order marker %x", marker)
	}
}

// ParseByteOrder converts "big", "little" or "native" to a byte order.  An empty
// string means native.
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(s) {
	case "big", "bigendian", "big_endian":
		return binary.BigEndian, nil
	case "little", "littleendian", "little_endian":
		return binary.LittleEndian, nil
	case "", "native":
		if isBigEndian(binary.NativeEndian) {
			return binary.BigEndian, nil
		}
		return binary.LittleEndian, nil
	default:
		return nil, fmt.Errorf("unknown byte order %q", s)
	}
}

// ByteOrderName is the inverse of ParseByteOrder for big and little endian orders.
func ByteOrderName(order binary.ByteOrder) string {
	if isBigEndian(order) {
		return "big"
	}
	return "little"
}

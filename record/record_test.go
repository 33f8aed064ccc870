package record

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestNumericCodecs(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		b := make([]byte, 8)

		Uint32.Put(order, b, 0xDEADBEEF)
		if got := Uint32.Get(order, b); got != 0xDEADBEEF {
			t.Errorf("%s uint32: got %x", order, got)
		}
		Int32.Put(order, b, -17)
		if got := Int32.Get(order, b); got != -17 {
			t.Errorf("%s int32: got %d", order, got)
		}
		Uint64.Put(order, b, 1<<40+3)
		if got := Uint64.Get(order, b); got != 1<<40+3 {
			t.Errorf("%s uint64: got %d", order, got)
		}
		Float32.Put(order, b, 0.25)
		if got := Float32.Get(order, b); got != 0.25 {
			t.Errorf("%s float32: got %f", order, got)
		}
		Float64.Put(order, b, -1.5e300)
		if got := Float64.Get(order, b); got != -1.5e300 {
			t.Errorf("%s float64: got %g", order, got)
		}
	}
}

func TestCodecSizes(t *testing.T) {
	if NoData.Size() != 0 {
		t.Errorf("NoData must be zero sized")
	}
	if Uint32.Size() != 4 || Float64.Size() != 8 {
		t.Errorf("unexpected numeric codec sizes")
	}
	if Bytes(12).Size() != 12 {
		t.Errorf("unexpected bytes codec size")
	}
}

func TestBytesCodecPads(t *testing.T) {
	c := Bytes(6)
	buf := bytes.Repeat([]byte{0xFF}, 8)
	c.Put(binary.BigEndian, buf, []byte("abc"))
	if !bytes.Equal(buf[:6], []byte{'a', 'b', 'c', 0, 0, 0}) {
		t.Errorf("short value not padded: %v", buf)
	}
	if buf[6] != 0xFF || buf[7] != 0xFF {
		t.Errorf("codec wrote past its record: %v", buf)
	}
	c.Put(binary.BigEndian, buf, []byte("abcdefgh"))
	if got := c.Get(binary.BigEndian, buf); string(got) != "abcdef" {
		t.Errorf("long value not truncated: %q", got)
	}
}

package edgemap

import (
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"

	"github.com/psgs/psgs/psgs"
	"github.com/psgs/psgs/record"
)

func checkAgainst(t *testing.T, m Map[uint32], want map[uint32]uint32) {
	t.Helper()
	if m.Len() != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), m.Len())
	}
	for id, v := range want {
		got, found := m.Get(id)
		if !found {
			t.Fatalf("id %d missing", id)
		}
		if got != v {
			t.Fatalf("id %d: expected %d, got %d", id, v, got)
		}
	}
	seen := 0
	m.ForEach(func(id uint32, d uint32) {
		if want[id] != d {
			t.Errorf("ForEach gave id %d value %d, expected %d", id, d, want[id])
		}
		seen++
	})
	if seen != len(want) {
		t.Errorf("ForEach visited %d entries, expected %d", seen, len(want))
	}
}

func TestHashMapRandomOps(t *testing.T) {
	m := NewHashMap(1, record.Uint32, binary.LittleEndian)
	want := make(map[uint32]uint32)
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 20000; i++ {
		id := uint32(r.Intn(3000)) + 1
		switch r.Intn(3) {
		case 0, 1:
			v := r.Uint32()
			prev, existed := m.Add(id, v)
			old, had := want[id]
			if existed != had || prev != old {
				t.Fatalf("Add(%d): got (%d, %t), expected (%d, %t)", id, prev, existed, old, had)
			}
			want[id] = v
		case 2:
			got, existed := m.Remove(id)
			old, had := want[id]
			if existed != had || got != old {
				t.Fatalf("Remove(%d): got (%d, %t), expected (%d, %t)", id, got, existed, old, had)
			}
			delete(want, id)
		}
		if m.Len() != len(want) {
			t.Fatalf("after op %d: expected %d entries, got %d", i, len(want), m.Len())
		}
	}
	checkAgainst(t, m, want)
}

func TestJustAddOverwrites(t *testing.T) {
	m := NewHashMap(4, record.Uint32, binary.BigEndian)
	if !m.JustAdd(7, 1) {
		t.Errorf("expected 7 to be new")
	}
	if m.JustAdd(7, 2) {
		t.Errorf("expected 7 to exist")
	}
	if v, _ := m.Get(7); v != 2 {
		t.Errorf("expected overwritten value 2, got %d", v)
	}
	if !m.JustRemove(7) || m.JustRemove(7) {
		t.Errorf("bad JustRemove results")
	}
	if !m.IsEmpty() {
		t.Errorf("expected empty map")
	}
}

func TestRemoveKeepsDense(t *testing.T) {
	m := NewHashMap(2, record.Uint32, binary.LittleEndian)
	for id := uint32(1); id <= 5; id++ {
		m.JustAdd(id, id*10)
	}
	m.JustRemove(2)
	// Last entry moves into the freed position.
	if got := m.IDs(); len(got) != 4 || got[1] != 5 {
		t.Fatalf("expected 5 to take position 1, got %v", got)
	}
	if v, _ := m.Get(5); v != 50 {
		t.Errorf("moved record has value %d, expected 50", v)
	}
	if len(m.data) < cap(m.ids)*4 {
		t.Errorf("record buffer smaller than id capacity")
	}
}

func TestGrowth(t *testing.T) {
	m := NewHashMap(1, record.Uint64, binary.LittleEndian)
	for id := uint32(1); id <= 1000; id++ {
		m.JustAdd(id, uint64(id)<<32)
	}
	for id := uint32(1); id <= 1000; id++ {
		if v, found := m.Get(id); !found || v != uint64(id)<<32 {
			t.Fatalf("id %d: got %d, %t", id, v, found)
		}
	}
	if m.Contains(1001) || m.Contains(0) {
		t.Errorf("unexpected id found")
	}
}

func TestCursorRemove(t *testing.T) {
	m := NewHashMap(8, record.Uint32, binary.LittleEndian)
	for id := uint32(1); id <= 100; id++ {
		m.JustAdd(id, id)
	}
	visited := make(map[uint32]bool)
	c := m.Cursor()
	for c.Next() {
		id := c.ID()
		if visited[id] {
			t.Fatalf("id %d visited twice", id)
		}
		visited[id] = true
		if id%2 == 0 {
			c.Remove()
		} else {
			c.SetValue(id * 3)
		}
	}
	if len(visited) != 100 {
		t.Errorf("cursor visited %d ids, expected 100", len(visited))
	}
	want := make(map[uint32]uint32)
	for id := uint32(1); id <= 100; id += 2 {
		want[id] = id * 3
	}
	checkAgainst(t, m, want)
}

func TestCursorRemoveAll(t *testing.T) {
	s := NewIDSet[record.Empty](0, binary.LittleEndian)
	for id := uint32(1); id <= 50; id++ {
		s.JustAdd(id, record.Empty{})
	}
	c := s.Cursor()
	n := 0
	for c.Next() {
		c.Remove()
		c.Remove()
		n++
	}
	if n != 50 || s.Len() != 0 {
		t.Errorf("expected 50 removals leaving empty set, got %d and %d left", n, s.Len())
	}
}

func TestAllStopsEarly(t *testing.T) {
	m := New(4, record.Uint32, binary.LittleEndian)
	for id := uint32(1); id <= 10; id++ {
		m.JustAdd(id, id)
	}
	n := 0
	for range m.All() {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("expected to stop after 3, got %d", n)
	}
	if m.TestWhile(func(id, d uint32) bool { return id != 4 }) {
		t.Errorf("expected TestWhile to stop at id 4")
	}
	if !m.TestIDsWhile(func(id uint32) bool { return id != 0 }) {
		t.Errorf("expected TestIDsWhile to see every id")
	}
}

func TestNewPicksIDSet(t *testing.T) {
	if _, ok := New(1, record.NoData, binary.BigEndian).(*IDSet[record.Empty]); !ok {
		t.Errorf("expected IDSet for zero-size codec")
	}
	if _, ok := New(1, record.Float32, binary.BigEndian).(*HashMap[float32]); !ok {
		t.Errorf("expected HashMap for float32 codec")
	}
}

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		fileOrder binary.ByteOrder
		mapOrder  binary.ByteOrder
	}{
		{binary.BigEndian, binary.BigEndian},
		{binary.LittleEndian, binary.BigEndian},
		{binary.BigEndian, binary.LittleEndian},
	}
	for _, tc := range tests {
		m := NewHashMap(4, record.Uint32, tc.mapOrder)
		for id := uint32(1); id <= 20; id++ {
			m.JustAdd(id*7, id)
		}
		m.JustRemove(14)
		b := m.AppendTo(nil, tc.fileOrder)
		if len(b) != m.EncodedSize() {
			t.Fatalf("encoded %d bytes, EncodedSize says %d", len(b), m.EncodedSize())
		}
		got, n, err := Decode(b, tc.fileOrder, record.Uint32)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if n != len(b) {
			t.Errorf("consumed %d of %d bytes", n, len(b))
		}
		if got.Order() != tc.mapOrder {
			t.Errorf("decoded records should keep their order")
		}
		want := make(map[uint32]uint32)
		m.ForEach(func(id, d uint32) { want[id] = d })
		checkAgainst(t, got, want)

		// Encoding is order preserving, so re-encoding is byte identical.
		again := got.AppendTo(nil, tc.fileOrder)
		if string(again) != string(b) {
			t.Errorf("re-encoding differs")
		}
	}
}

func TestDecodeIDSet(t *testing.T) {
	s := NewIDSet[record.Empty](2, binary.LittleEndian)
	s.JustAdd(3, record.Empty{})
	s.JustAdd(9, record.Empty{})
	b := s.AppendTo(nil, binary.BigEndian)
	if len(b) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(b))
	}
	got, _, err := Decode(b, binary.BigEndian, record.NoData)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 2 || !got.Contains(3) || !got.Contains(9) {
		t.Errorf("bad decoded set %v", got.IDs())
	}
}

func TestDecodeCorrupted(t *testing.T) {
	order := binary.LittleEndian
	var b []byte
	b = psgs.AppendUint32(order, b, 2)
	b = psgs.AppendUint32(order, b, psgs.LittleEndianMarker)
	b = psgs.AppendUint32(order, b, 5)
	b = psgs.AppendUint32(order, b, 1)
	b = psgs.AppendUint32(order, b, 5)
	b = psgs.AppendUint32(order, b, 2)
	if _, _, err := Decode(b, order, record.Uint32); !errors.Is(err, psgs.ErrCorrupted) {
		t.Errorf("expected corruption for duplicate ids, got %v", err)
	}
	if _, _, err := Decode(b[:20], order, record.Uint32); !errors.Is(err, psgs.ErrCorrupted) {
		t.Errorf("expected corruption for truncated entries, got %v", err)
	}
	bad := append([]byte{}, b...)
	order.PutUint32(bad[4:], 12)
	if _, _, err := Decode(bad, order, record.Uint32); !errors.Is(err, psgs.ErrCorrupted) {
		t.Errorf("expected corruption for bad marker, got %v", err)
	}
}

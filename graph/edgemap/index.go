package edgemap

import "github.com/psgs/psgs/psgs"

// idIndex is an open-addressed hash index from node id to a dense position.
// Ids are kept packed in ids[0:n]; slots hold position+1 with 0 marking an empty
// slot.  Collisions are resolved by linear probing and deletions by backward
// shifting, so there are never tombstones to skip.
type idIndex struct {
	ids   []uint32
	slots []int32
	mask  uint32
}

func (x *idIndex) init(expected int) {
	if expected < 1 {
		expected = 1
	}
	x.ids = make([]uint32, 0, expected)
	x.initSlots(expected)
}

// initSlots allocates enough slots for n ids at the load factor.
func (x *idIndex) initSlots(n int) {
	size := psgs.UpperPowerOf2((n*5 + 3) / 4)
	if size < 4 {
		size = 4
	}
	x.slots = make([]int32, size)
	x.mask = uint32(size - 1)
}

func (x *idIndex) home(id uint32) uint32 {
	return psgs.Mix32(id) & x.mask
}

// slotOf returns the slot holding id, or the empty slot where it would go.
func (x *idIndex) slotOf(id uint32) (slot uint32, found bool) {
	for s := x.home(id); ; s = (s + 1) & x.mask {
		p := x.slots[s]
		if p == 0 {
			return s, false
		}
		if x.ids[p-1] == id {
			return s, true
		}
	}
}

// find returns the dense position of id or -1.
func (x *idIndex) find(id uint32) int {
	s, found := x.slotOf(id)
	if !found {
		return -1
	}
	return int(x.slots[s] - 1)
}

// insert returns the position of id, appending it if absent.  The ids slice
// grows by half its capacity when full.
func (x *idIndex) insert(id uint32) (pos int, isNew bool) {
	s, found := x.slotOf(id)
	if found {
		return int(x.slots[s] - 1), false
	}
	pos = len(x.ids)
	if pos == cap(x.ids) {
		x.growIDs()
	}
	x.ids = append(x.ids, id)
	if (pos+1)*5 > len(x.slots)*4 {
		x.rehash(len(x.slots) * 2)
	} else {
		x.slots[s] = int32(pos + 1)
	}
	return pos, true
}

func (x *idIndex) growIDs() {
	oldCap := cap(x.ids)
	newCap := oldCap + oldCap>>1
	if newCap < oldCap+2 {
		newCap = oldCap + 2
	}
	ids := make([]uint32, len(x.ids), newCap)
	copy(ids, x.ids)
	x.ids = ids
}

func (x *idIndex) rehash(size int) {
	x.slots = make([]int32, size)
	x.mask = uint32(size - 1)
	for pos, id := range x.ids {
		s := x.home(id)
		for x.slots[s] != 0 {
			s = (s + 1) & x.mask
		}
		x.slots[s] = int32(pos + 1)
	}
}

// delete removes id and keeps ids dense by moving the last id into the freed
// position.  It returns the freed position and the position the moved id came
// from; the two are equal when the removed id was last.
func (x *idIndex) delete(id uint32) (pos, last int, ok bool) {
	s, found := x.slotOf(id)
	if !found {
		return -1, -1, false
	}
	pos = int(x.slots[s] - 1)
	x.clearSlot(s)
	last = x.compact(pos)
	return pos, last, true
}

// deleteAt removes the id at a dense position.
func (x *idIndex) deleteAt(pos int) (last int) {
	s, _ := x.slotOf(x.ids[pos])
	x.clearSlot(s)
	return x.compact(pos)
}

// compact fills position pos after the slot for ids[pos] has been cleared.
func (x *idIndex) compact(pos int) (last int) {
	last = len(x.ids) - 1
	if pos != last {
		moved := x.ids[last]
		x.ids[pos] = moved
		for s := x.home(moved); ; s = (s + 1) & x.mask {
			if x.slots[s] == int32(last+1) {
				x.slots[s] = int32(pos + 1)
				break
			}
		}
	}
	x.ids = x.ids[:last]
	return last
}

// clearSlot empties slot i and shifts back any following entries of the probe
// run that would otherwise become unreachable.
func (x *idIndex) clearSlot(i uint32) {
	j := i
	for {
		j = (j + 1) & x.mask
		p := x.slots[j]
		if p == 0 {
			break
		}
		k := x.home(x.ids[p-1])
		// The entry at j may stay if its home lies cyclically within (i, j].
		if i <= j {
			if i < k && k <= j {
				continue
			}
		} else if i < k || k <= j {
			continue
		}
		x.slots[i] = p
		i = j
	}
	x.slots[i] = 0
}

func (x *idIndex) Len() int {
	return len(x.ids)
}

func (x *idIndex) IsEmpty() bool {
	return len(x.ids) == 0
}

func (x *idIndex) Contains(id uint32) bool {
	_, found := x.slotOf(id)
	return found
}

func (x *idIndex) ForEachID(fn func(id uint32)) {
	for _, id := range x.ids {
		fn(id)
	}
}

func (x *idIndex) TestIDsWhile(fn func(id uint32) bool) bool {
	for _, id := range x.ids {
		if !fn(id) {
			return false
		}
	}
	return true
}

// IDs returns a copy of the ids in dense order.
func (x *idIndex) IDs() []uint32 {
	out := make([]uint32, len(x.ids))
	copy(out, x.ids)
	return out
}

func (x *idIndex) idAt(pos int) uint32 {
	return x.ids[pos]
}

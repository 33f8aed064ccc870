package graph

import "github.com/psgs/psgs/psgs"

// nodeCache is a direct-mapped cache of clean nodes loaded from disk.  A node
// hashing to an occupied slot replaces its occupant.
type nodeCache struct {
	slots []*Node
	mask  uint32
}

func newNodeCache(size int) nodeCache {
	size = psgs.UpperPowerOf2(size)
	return nodeCache{slots: make([]*Node, size), mask: uint32(size - 1)}
}

func (c *nodeCache) slot(id uint32) *(*Node) {
	return &c.slots[psgs.Mix32(id)&c.mask]
}

func (c *nodeCache) get(id uint32) *Node {
	if n := *c.slot(id); n != nil && n.id == id {
		return n
	}
	return nil
}

func (c *nodeCache) put(n *Node) {
	*c.slot(n.id) = n
}

func (c *nodeCache) remove(id uint32) {
	if s := c.slot(id); *s != nil && (*s).id == id {
		*s = nil
	}
}

func (c *nodeCache) clear() {
	clear(c.slots)
}

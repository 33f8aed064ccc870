package storage

import (
	"encoding/binary"

	"github.com/coocood/freecache"

	"github.com/psgs/psgs/psgs"
)

// CachedIndex keeps recently read descriptors in a freecache cache in front of
// an index.  Puts write through.
type CachedIndex struct {
	Index
	order binary.ByteOrder
	cache *freecache.Cache
}

// NewCachedIndex wraps idx with a descriptor cache of the given size in MB.  A
// size <= 0 returns idx unchanged.
func NewCachedIndex(idx Index, order binary.ByteOrder, sizeMB int) Index {
	if sizeMB <= 0 {
		return idx
	}
	psgs.Debugf("Descriptor cache of %d MB in front of index\n", sizeMB)
	return &CachedIndex{
		Index: idx,
		order: order,
		cache: freecache.NewCache(sizeMB * psgs.Mega),
	}
}

func (c *CachedIndex) Get(id uint32) (Descriptor, bool, error) {
	key := IndexKey(id)
	if v, err := c.cache.Get(key); err == nil {
		d, err := DecodeDescriptor(c.order, v)
		return d, err == nil, err
	} else if err != freecache.ErrNotFound {
		return Descriptor{}, false, err
	}
	d, found, err := c.Index.Get(id)
	if err != nil || !found {
		return d, found, err
	}
	if err := c.cache.Set(key, d.Bytes(c.order), 0); err != nil {
		psgs.Debugf("Unable to cache descriptor for node %d: %v\n", id, err)
	}
	return d, true, nil
}

func (c *CachedIndex) Put(id uint32, d Descriptor) error {
	if err := c.Index.Put(id, d); err != nil {
		return err
	}
	if err := c.cache.Set(IndexKey(id), d.Bytes(c.order), 0); err != nil {
		c.cache.Del(IndexKey(id))
	}
	return nil
}

// Hits returns the number of lookups served from the cache.
func (c *CachedIndex) Hits() int64 {
	return c.cache.HitCount()
}

// Misses returns the number of lookups that went to the index.
func (c *CachedIndex) Misses() int64 {
	return c.cache.MissCount()
}

func (c *CachedIndex) Close() error {
	psgs.Debugf("Descriptor cache: %d hits, %d misses\n", c.Hits(), c.Misses())
	c.cache.Clear()
	return c.Index.Close()
}

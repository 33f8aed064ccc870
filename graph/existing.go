package graph

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/dustin/go-humanize"

	"github.com/psgs/psgs/psgs"
	"github.com/psgs/psgs/storage"

	// Register the default index engine.
	_ "github.com/psgs/psgs/storage/badger"
)

// ExistingGraph is a graph opened from a directory.  Nodes are decoded on
// demand from the memory-mapped data file and kept in a node cache while clean.
// Changed, added and removed nodes live in an overlay until Close, which for an
// updatable graph writes the destination directory: unchanged records are moved
// as is, overlay nodes are encoded anew, and the index is rebuilt.
type ExistingGraph struct {
	graphBase
	src      string
	dst      string
	readOnly bool
	meta     *Metadata

	data *storage.DataFile
	idx  storage.Index

	// overlay maps ids of changed or new nodes to the node, and ids of removed
	// nodes that still have an index entry to nil.
	overlay map[uint32]*Node
	cache   nodeCache
}

// Open opens the graph in dir read-only.  Changes are allowed but discarded on
// Close.
func Open(dir string, schema *Schema, cfg Config) (*ExistingGraph, error) {
	return openExisting(dir, "", schema, cfg)
}

// CopyForUpdating opens the graph in src for changes that Close writes to dst.
// src and dst may be the same directory.
func CopyForUpdating(src, dst string, schema *Schema, cfg Config) (*ExistingGraph, error) {
	if dst == "" {
		return nil, psgs.Usagef("no destination directory given")
	}
	return openExisting(src, dst, schema, cfg)
}

func openExisting(src, dst string, schema *Schema, cfg Config) (*ExistingGraph, error) {
	tlog := psgs.NewTimeLog()
	meta, err := ReadMetadata(src)
	if err != nil {
		return nil, err
	}
	if err := meta.checkSchema(schema); err != nil {
		return nil, err
	}
	order, err := meta.Order()
	if err != nil {
		return nil, err
	}
	engine, err := storage.CheckEngineVersion(meta.IndexEngine, meta.IndexEngineVersion)
	if err != nil {
		return nil, err
	}

	g := &ExistingGraph{
		src:      src,
		dst:      dst,
		readOnly: dst == "",
		meta:     meta,
		overlay:  make(map[uint32]*Node),
		cache:    newNodeCache(cfg.nodeCacheSize()),
	}
	g.graphBase = newGraphBase(g, schema, cfg, order)
	if err := g.types.load(meta.NodeTypes); err != nil {
		return nil, err
	}
	if err := g.modelIDs.load(meta.EdgeModels); err != nil {
		return nil, err
	}
	g.nodeCount = meta.NodeCount
	g.minBound, g.maxBound = meta.MinNodeIDBound, meta.MaxNodeIDBound

	g.data, err = storage.OpenDataFile(filepath.Join(src, DataFile))
	if err != nil {
		return nil, err
	}
	if uint64(g.data.Size()) != meta.DataSize {
		g.data.Close()
		return nil, psgs.Corruptedf("data file of %s has %d bytes, metadata says %d", src, g.data.Size(), meta.DataSize)
	}
	idx, err := engine.OpenIndex(storage.IndexOptions{
		Path:      filepath.Join(src, IndexDir),
		Order:     order,
		ReadOnly:  true,
		LowMemory: cfg.LowMemory,
	})
	if err != nil {
		g.data.Close()
		return nil, err
	}
	g.idx = storage.NewCachedIndex(idx, order, cfg.DescriptorCacheMB)

	tlog.Infof("Opened graph @ %s: %d nodes, %s of node data, %s index", src, meta.NodeCount,
		humanize.Bytes(meta.DataSize), engine)
	return g, nil
}

// Metadata returns the metadata the graph was opened with.
func (g *ExistingGraph) Metadata() *Metadata {
	return g.meta
}

func (g *ExistingGraph) Node(id uint32) (*Node, error) {
	if err := g.checkOpen(); err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, psgs.ErrZeroNodeID
	}
	if n, found := g.overlay[id]; found {
		return n, nil
	}
	if n := g.cache.get(id); n != nil {
		return n, nil
	}
	d, found, err := g.idx.Get(id)
	if err != nil || !found {
		return nil, err
	}
	n, err := g.decode(id, d)
	if err != nil {
		return nil, err
	}
	g.cache.put(n)
	return n, nil
}

// decode builds a node from its record.
func (g *ExistingGraph) decode(id uint32, d storage.Descriptor) (*Node, error) {
	data, err := g.newNodeData(d.TypeID)
	if err != nil {
		return nil, fmt.Errorf("node %d: %w", id, err)
	}
	n := &Node{id: id, typeID: d.TypeID, g: g, onDisk: true}
	payload, _, err := storage.WalkRecord(g.data.Bytes(), d.Offset, int(d.AdjCount), g.order,
		func(modelID uint32, entry []byte) error {
			if modelID == 0 || modelID > 255 {
				return psgs.Corruptedf("bad edge model id %d", modelID)
			}
			m, err := g.modelByID(uint8(modelID))
			if err != nil {
				return err
			}
			if n.adj.get(m.ID()) != nil {
				return psgs.Corruptedf("duplicate %s entry", m.Name())
			}
			a, err := m.decode(n, entry)
			if err != nil {
				return err
			}
			n.adj.put(a)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("node %d: %w", id, err)
	}
	if err := data.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("%w: can't decode payload of node %d: %v", psgs.ErrCorrupted, id, err)
	}
	n.data = data
	return n, nil
}

func (g *ExistingGraph) IsNodeIDUsed(id uint32) (bool, error) {
	if err := g.checkOpen(); err != nil {
		return false, err
	}
	if id == 0 {
		return false, psgs.ErrZeroNodeID
	}
	if n, found := g.overlay[id]; found {
		return n != nil, nil
	}
	_, found, err := g.idx.Get(id)
	return found, err
}

func (g *ExistingGraph) RemoveNode(n *Node) error {
	if n == nil {
		return psgs.ErrNodeNotInGraph
	}
	id, onDisk := n.id, n.onDisk
	if err := g.removeNode(n); err != nil {
		return err
	}
	if onDisk {
		g.overlay[id] = nil
	} else {
		delete(g.overlay, id)
	}
	g.cache.remove(id)
	return nil
}

func (g *ExistingGraph) ForEachNode(fn func(*Node) error) error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	changed := make([]uint32, 0, len(g.overlay))
	inOverlay := make(map[uint32]struct{}, len(g.overlay))
	for id := range g.overlay {
		changed = append(changed, id)
		inOverlay[id] = struct{}{}
	}
	slices.Sort(changed)

	err := g.idx.ForEach(func(id uint32, d storage.Descriptor) error {
		if _, found := inOverlay[id]; found {
			return nil
		}
		n := g.cache.get(id)
		if n == nil {
			var err error
			if n, err = g.decode(id, d); err != nil {
				return err
			}
			g.cache.put(n)
		}
		return fn(n)
	})
	if err != nil {
		return err
	}
	for _, id := range changed {
		if n := g.overlay[id]; n != nil {
			if err := fn(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close releases the graph.  A graph opened with CopyForUpdating is first
// written to its destination.
func (g *ExistingGraph) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	if g.readOnly {
		return g.release()
	}
	err := g.compact()
	if rerr := g.release(); err == nil {
		err = rerr
	}
	return err
}

func (g *ExistingGraph) compact() error {
	tlog := psgs.NewTimeLog()
	w, err := newGraphWriter(&g.graphBase, g.dst, g.cfg.indexEngine(g.meta.IndexEngine))
	if err != nil {
		return err
	}
	src := g.data.Bytes()
	err = g.idx.ForEach(func(id uint32, d storage.Descriptor) error {
		if _, found := g.overlay[id]; found {
			return nil
		}
		return w.moveRecord(id, d, src)
	})
	if err != nil {
		w.abort()
		return err
	}
	changed := make([]uint32, 0, len(g.overlay))
	for id, n := range g.overlay {
		if n != nil {
			changed = append(changed, id)
		}
	}
	slices.Sort(changed)
	for _, id := range changed {
		if err := w.writeNode(g.overlay[id]); err != nil {
			w.abort()
			return err
		}
	}
	if err := w.finish(g.release); err != nil {
		return err
	}
	tlog.Infof("Compacted graph %s into %s: %d changed nodes", g.src, g.dst, len(changed))
	return nil
}

// release closes the data file and index.  It may be called more than once.
func (g *ExistingGraph) release() error {
	var err error
	if g.idx != nil {
		err = g.idx.Close()
		g.idx = nil
	}
	if g.data != nil {
		if derr := g.data.Close(); err == nil {
			err = derr
		}
		g.data = nil
	}
	g.cache.clear()
	return err
}

func (g *ExistingGraph) nodeForChange(id uint32) (*Node, error) {
	n, err := g.Node(id)
	if err != nil || n == nil {
		return nil, err
	}
	if err := n.OnChange(); err != nil {
		return nil, err
	}
	return n, nil
}

func (g *ExistingGraph) checkHandle(n *Node) error {
	if err := g.checkOpen(); err != nil {
		return err
	}
	if n.g == nil {
		return psgs.ErrNodeNotInGraph
	}
	if n.g != graphImpl(g) {
		return psgs.ErrCrossGraph
	}
	if e, found := g.overlay[n.id]; found && e != n {
		if e == nil {
			return psgs.ErrNodeNotInGraph
		}
		return psgs.Usagef("node %d was reloaded since this handle was obtained", n.id)
	}
	return nil
}

func (g *ExistingGraph) nodeChanged(n *Node) error {
	if e, found := g.overlay[n.id]; found {
		if e != n {
			return psgs.Usagef("node %d was reloaded since this handle was obtained", n.id)
		}
		return nil
	}
	g.overlay[n.id] = n
	g.cache.remove(n.id)
	return nil
}

func (g *ExistingGraph) attach(n *Node) error {
	e, found := g.overlay[n.id]
	switch {
	case found && e != nil:
		return psgs.Usagef("node id %d already used", n.id)
	case found:
		// Reusing the id of a removed node that still has an index entry.
		n.onDisk = true
	default:
		_, inIndex, err := g.idx.Get(n.id)
		if err != nil {
			return err
		}
		if inIndex {
			return psgs.Usagef("node id %d already used", n.id)
		}
	}
	g.overlay[n.id] = n
	return nil
}

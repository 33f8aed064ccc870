package graph

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/twinj/uuid"

	"github.com/psgs/psgs/psgs"
	"github.com/psgs/psgs/storage"
)

// graphWriter builds a graph directory in a temporary sibling of its
// destination and swaps it in once complete.
type graphWriter struct {
	g      *graphBase
	dst    string
	tmp    string
	engine storage.Engine

	data  *storage.DataWriter
	idx   storage.Index
	stats *statsCollector
	// carried replaces collected stats when records are moved without a schema.
	carried *Stats
	count   int64
	moved   int64
	buf     []byte
}

func newGraphWriter(g *graphBase, dst, engineName string) (*graphWriter, error) {
	engine, err := storage.GetEngine(engineName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", psgs.ErrUsage, err)
	}
	dst, err = filepath.Abs(dst)
	if err != nil {
		return nil, err
	}
	tmp := filepath.Join(filepath.Dir(dst), fmt.Sprintf(".%s-%x", filepath.Base(dst), uuid.NewV4().Bytes()))
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return nil, fmt.Errorf("can't make temporary graph directory: %v", err)
	}
	w := &graphWriter{g: g, dst: dst, tmp: tmp, engine: engine, stats: newStatsCollector()}
	w.data, err = storage.CreateDataWriter(filepath.Join(tmp, DataFile), g.cfg.WriteBufferSize, g.cfg.SyncWrites)
	if err != nil {
		os.RemoveAll(tmp)
		return nil, err
	}
	w.idx, err = engine.OpenIndex(storage.IndexOptions{
		Path:       filepath.Join(tmp, IndexDir),
		Order:      g.order,
		SyncWrites: g.cfg.SyncWrites,
		LowMemory:  g.cfg.LowMemory,
	})
	if err != nil {
		w.data.Abort()
		os.RemoveAll(tmp)
		return nil, err
	}
	return w, nil
}

// writeNode encodes a decoded node.
func (w *graphWriter) writeNode(n *Node) error {
	payload, err := n.data.AppendBinary(nil)
	if err != nil {
		return fmt.Errorf("can't encode payload of %s: %v", n, err)
	}
	order := w.g.order
	b := storage.AppendPayload(w.buf[:0], order, payload)
	var adjCount uint8
	for _, a := range n.adj.entries() {
		cnt := a.count()
		if cnt == 0 {
			continue
		}
		m := a.owner()
		var start int
		b, start = storage.BeginEntry(b, order, uint32(m.ID()))
		b = a.encode(b, order)
		b = storage.EndEntry(b, order, start)
		adjCount++
		w.stats.addEdges(m.ID(), m.Unique(), cnt)
	}
	w.buf = b
	off, err := w.data.Write(b)
	if err != nil {
		return err
	}
	w.stats.addNode(n.typeID)
	w.count++
	return w.idx.Put(n.id, storage.Descriptor{TypeID: n.typeID, AdjCount: adjCount, Offset: off})
}

// moveRecord copies the record of an unchanged node without decoding it.
func (w *graphWriter) moveRecord(id uint32, d storage.Descriptor, src []byte) error {
	order := w.g.order
	count := func(modelID uint32, entry []byte) error {
		if modelID > 255 {
			return psgs.Corruptedf("node %d has adjacency entry of model %d", id, modelID)
		}
		return w.stats.addRawEntry(w.g, uint8(modelID), entry, order)
	}
	if w.carried != nil {
		count = nil
	}
	_, size, err := storage.WalkRecord(src, d.Offset, int(d.AdjCount), order, count)
	if err != nil {
		return fmt.Errorf("node %d: %w", id, err)
	}
	off, err := w.data.Write(src[d.Offset : d.Offset+uint64(size)])
	if err != nil {
		return err
	}
	w.stats.addNode(d.TypeID)
	w.count++
	w.moved++
	d.Offset = off
	return w.idx.Put(id, d)
}

// finish completes the temporary directory.  release is called to free any
// handles on the destination before it gets replaced.
func (w *graphWriter) finish(release func() error) error {
	dataSize := w.data.Offset()
	if err := w.data.Close(); err != nil {
		w.abortAfterData()
		return err
	}
	if err := w.idx.Close(); err != nil {
		os.RemoveAll(w.tmp)
		return err
	}
	g := w.g
	meta := &Metadata{
		ProtocolVersion:    ProtocolVersion,
		Format:             FormatFull,
		ByteOrder:          psgs.ByteOrderName(g.order),
		NodeCount:          w.count,
		MinNodeIDBound:     g.minBound,
		MaxNodeIDBound:     g.maxBound,
		NodeTypes:          g.types.table(),
		EdgeModels:         g.modelIDs.table(),
		IndexEngine:        w.engine.GetName(),
		IndexEngineVersion: w.engine.GetSemVer().String(),
		DataSize:           dataSize,
	}
	if w.carried != nil {
		meta.Stats = *w.carried
	} else {
		meta.Stats = w.stats.result(g)
	}
	if err := meta.write(w.tmp, g.cfg.SyncWrites); err != nil {
		os.RemoveAll(w.tmp)
		return err
	}
	if g.cfg.SyncWrites {
		if err := psgs.SyncDir(w.tmp); err != nil {
			os.RemoveAll(w.tmp)
			return err
		}
	}
	if release != nil {
		if err := release(); err != nil {
			os.RemoveAll(w.tmp)
			return err
		}
	}
	if err := swapDir(w.tmp, w.dst); err != nil {
		os.RemoveAll(w.tmp)
		return err
	}
	psgs.Infof("Wrote graph @ %s: %d nodes (%d moved), %s of node data\n",
		w.dst, w.count, w.moved, humanize.Bytes(dataSize))
	return nil
}

func (w *graphWriter) abortAfterData() {
	w.idx.Close()
	os.RemoveAll(w.tmp)
}

// abort discards everything written.
func (w *graphWriter) abort() {
	w.data.Abort()
	w.abortAfterData()
}

// swapDir replaces dst by src.  An existing dst is renamed aside first and
// removed once src is in place.
func swapDir(src, dst string) error {
	var old string
	if psgs.FileExists(dst) {
		old = fmt.Sprintf("%s.old-%x", dst, uuid.NewV4().Bytes())
		if err := os.Rename(dst, old); err != nil {
			return fmt.Errorf("can't move %s aside: %v", dst, err)
		}
	}
	if err := os.Rename(src, dst); err != nil {
		if old != "" {
			os.Rename(old, dst)
		}
		return fmt.Errorf("can't move new graph into %s: %v", dst, err)
	}
	if err := psgs.SyncDir(filepath.Dir(dst)); err != nil {
		psgs.Warningf("Unable to sync %s: %v\n", filepath.Dir(dst), err)
	}
	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			psgs.Warningf("Unable to remove previous graph @ %s: %v\n", old, err)
		}
	}
	return nil
}

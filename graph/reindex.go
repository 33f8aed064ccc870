package graph

import (
	"path/filepath"

	"github.com/psgs/psgs/psgs"
	"github.com/psgs/psgs/storage"
)

// Reindex copies the graph in src to dst moving every record as is, so no schema
// is needed.  The node index of dst is built with cfg.IndexEngine, or the engine
// of src if none is given.  Byte order, registries and stats are kept.  src and
// dst may be the same directory.
func Reindex(src, dst string, cfg Config) error {
	tlog := psgs.NewTimeLog()
	meta, err := ReadMetadata(src)
	if err != nil {
		return err
	}
	order, err := meta.Order()
	if err != nil {
		return err
	}
	engine, err := storage.CheckEngineVersion(meta.IndexEngine, meta.IndexEngineVersion)
	if err != nil {
		return err
	}
	g := newGraphBase(nil, NewSchema(), cfg, order)
	if err := g.types.load(meta.NodeTypes); err != nil {
		return err
	}
	if err := g.modelIDs.load(meta.EdgeModels); err != nil {
		return err
	}
	g.minBound, g.maxBound = meta.MinNodeIDBound, meta.MaxNodeIDBound

	data, err := storage.OpenDataFile(filepath.Join(src, DataFile))
	if err != nil {
		return err
	}
	idx, err := engine.OpenIndex(storage.IndexOptions{
		Path:      filepath.Join(src, IndexDir),
		Order:     order,
		ReadOnly:  true,
		LowMemory: cfg.LowMemory,
	})
	if err != nil {
		data.Close()
		return err
	}
	release := func() error {
		var err error
		if idx != nil {
			err = idx.Close()
			idx = nil
		}
		if data != nil {
			if derr := data.Close(); err == nil {
				err = derr
			}
			data = nil
		}
		return err
	}
	defer release()

	w, err := newGraphWriter(&g, dst, cfg.indexEngine(meta.IndexEngine))
	if err != nil {
		return err
	}
	w.carried = &meta.Stats
	err = idx.ForEach(func(id uint32, d storage.Descriptor) error {
		if _, found := g.types.name(d.TypeID); !found {
			return psgs.Corruptedf("node %d has unknown type id %d", id, d.TypeID)
		}
		return w.moveRecord(id, d, data.Bytes())
	})
	if err != nil {
		w.abort()
		return err
	}
	if w.count != meta.NodeCount {
		w.abort()
		return psgs.Corruptedf("index of %s holds %d nodes, metadata says %d", src, w.count, meta.NodeCount)
	}
	if err := w.finish(release); err != nil {
		return err
	}
	tlog.Infof("Reindexed graph %s into %s with %s index", src, dst, w.engine)
	return nil
}

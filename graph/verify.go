package graph

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/psgs/psgs/psgs"
	"github.com/psgs/psgs/storage"
)

// VerifyReport summarizes a structural check of a graph directory.
type VerifyReport struct {
	Nodes       int64
	Entries     int64
	RecordBytes uint64
	DataSize    uint64
}

// Verify checks a graph directory without a schema: every index entry must point
// at a well-framed record within the data file, records must not overlap and
// must cover the data file, and type and model ids must be in the metadata
// tables.
func Verify(dir string) (*VerifyReport, error) {
	meta, err := ReadMetadata(dir)
	if err != nil {
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
	types := make(map[uint8]bool, len(meta.NodeTypes))
	for _, id := range meta.NodeTypes {
		types[id] = true
	}
	models := make(map[uint32]bool, len(meta.EdgeModels))
	for _, id := range meta.EdgeModels {
		models[uint32(id)] = true
	}

	df, err := storage.OpenDataFile(filepath.Join(dir, DataFile))
	if err != nil {
		return nil, err
	}
	defer df.Close()
	idx, err := engine.OpenIndex(storage.IndexOptions{Path: filepath.Join(dir, IndexDir), Order: order, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	type span struct{ off, size uint64 }
	var spans []span
	report := &VerifyReport{DataSize: uint64(df.Size())}
	data := df.Bytes()
	err = idx.ForEach(func(id uint32, d storage.Descriptor) error {
		if id == 0 {
			return psgs.Corruptedf("index holds node id 0")
		}
		if !types[d.TypeID] {
			return psgs.Corruptedf("node %d has unknown type id %d", id, d.TypeID)
		}
		_, size, err := storage.WalkRecord(data, d.Offset, int(d.AdjCount), order, func(modelID uint32, entry []byte) error {
			if !models[modelID] {
				return psgs.Corruptedf("unknown edge model id %d", modelID)
			}
			report.Entries++
			return nil
		})
		if err != nil {
			return fmt.Errorf("node %d: %w", id, err)
		}
		spans = append(spans, span{d.Offset, uint64(size)})
		report.Nodes++
		report.RecordBytes += uint64(size)
		return nil
	})
	if err != nil {
		return report, err
	}
	slices.SortFunc(spans, func(a, b span) int { return cmp.Compare(a.off, b.off) })
	for i := 1; i < len(spans); i++ {
		if spans[i-1].off+spans[i-1].size > spans[i].off {
			return report, psgs.Corruptedf("records @ %d and %d overlap", spans[i-1].off, spans[i].off)
		}
	}
	if report.Nodes != meta.NodeCount {
		return report, psgs.Corruptedf("index holds %d nodes, metadata says %d", report.Nodes, meta.NodeCount)
	}
	if report.RecordBytes != report.DataSize || report.DataSize != meta.DataSize {
		return report, psgs.Corruptedf("records cover %d bytes of %d in data file, metadata says %d",
			report.RecordBytes, report.DataSize, meta.DataSize)
	}
	return report, nil
}

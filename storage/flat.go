package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blang/semver"
	"github.com/google/btree"

	"github.com/psgs/psgs/psgs"
)

const (
	flatFile  = "entries"
	flatMagic = "PSGI"

	flatDegree = 32
)

func init() {
	ver, err := semver.Make("1.0.0")
	if err != nil {
		psgs.Errorf("Unable to make semver in flat engine: %v\n", err)
	}
	RegisterEngine(FlatEngine{"flat", "in-memory B-tree saved as a sorted entry file", ver})
}

// FlatEngine keeps the whole index in an in-memory B-tree and writes it as one
// sorted file of fixed-size entries.  It suits graphs whose index fits in memory.
type FlatEngine struct {
	name   string
	desc   string
	semver semver.Version
}

func (e FlatEngine) GetName() string {
	return e.name
}

func (e FlatEngine) GetDescription() string {
	return e.desc
}

func (e FlatEngine) GetSemVer() semver.Version {
	return e.semver
}

func (e FlatEngine) String() string {
	return fmt.Sprintf("%s [%s]", e.name, e.semver)
}

type flatEntry struct {
	id uint32
	d  Descriptor
}

func flatLess(a, b flatEntry) bool {
	return a.id < b.id
}

type flatIndex struct {
	path     string
	order    binary.ByteOrder
	readOnly bool
	sync     bool
	dirty    bool
	tree     *btree.BTreeG[flatEntry]
}

// OpenIndex loads the entry file at opts.Path if present.
func (e FlatEngine) OpenIndex(opts IndexOptions) (Index, error) {
	idx := &flatIndex{
		path:     opts.Path,
		order:    opts.order(),
		readOnly: opts.ReadOnly,
		sync:     opts.SyncWrites,
		tree:     btree.NewG(flatDegree, flatLess),
	}
	filename := filepath.Join(opts.Path, flatFile)
	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := idx.load(data); err != nil {
			return nil, fmt.Errorf("flat index %s: %w", filename, err)
		}
	case os.IsNotExist(err):
		if opts.ReadOnly {
			return nil, psgs.BadStatef("flat index %s doesn't exist", filename)
		}
		if err := os.MkdirAll(opts.Path, 0755); err != nil {
			return nil, fmt.Errorf("can't make flat index directory %s: %v", opts.Path, err)
		}
		idx.dirty = true
	default:
		return nil, err
	}
	return idx, nil
}

const flatEntrySize = 4 + DescriptorSize

func (idx *flatIndex) load(data []byte) error {
	if len(data) < 8 || !bytes.Equal(data[0:4], []byte(flatMagic)) {
		return psgs.BadStatef("not a flat index file")
	}
	count := int(idx.order.Uint32(data[4:8]))
	if len(data) != 8+count*flatEntrySize {
		return psgs.Corruptedf("flat index holds %d bytes for %d entries", len(data), count)
	}
	for pos := 8; pos < len(data); pos += flatEntrySize {
		id := idx.order.Uint32(data[pos:])
		d, err := DecodeDescriptor(idx.order, data[pos+4:pos+flatEntrySize])
		if err != nil {
			return err
		}
		idx.tree.ReplaceOrInsert(flatEntry{id, d})
	}
	return nil
}

func (idx *flatIndex) Get(id uint32) (Descriptor, bool, error) {
	e, found := idx.tree.Get(flatEntry{id: id})
	return e.d, found, nil
}

func (idx *flatIndex) Put(id uint32, d Descriptor) error {
	if idx.readOnly {
		return psgs.Usagef("can't put into read-only flat index %s", idx.path)
	}
	idx.tree.ReplaceOrInsert(flatEntry{id, d})
	idx.dirty = true
	return nil
}

func (idx *flatIndex) ForEach(fn func(id uint32, d Descriptor) error) error {
	var err error
	idx.tree.Ascend(func(e flatEntry) bool {
		err = fn(e.id, e.d)
		return err == nil
	})
	return err
}

// Flush rewrites the entry file through a temporary file and a rename.
func (idx *flatIndex) Flush() error {
	if idx.readOnly || !idx.dirty {
		return nil
	}
	buf := make([]byte, 0, 8+idx.tree.Len()*flatEntrySize)
	buf = append(buf, flatMagic...)
	buf = psgs.AppendUint32(idx.order, buf, uint32(idx.tree.Len()))
	var d [DescriptorSize]byte
	idx.tree.Ascend(func(e flatEntry) bool {
		buf = psgs.AppendUint32(idx.order, buf, e.id)
		e.d.Put(idx.order, d[:])
		buf = append(buf, d[:]...)
		return true
	})
	filename := filepath.Join(idx.path, flatFile)
	tmpname := filename + ".tmp"
	f, err := os.Create(tmpname)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return err
	}
	if idx.sync {
		if err := f.Sync(); err != nil {
			f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpname, filename); err != nil {
		return err
	}
	idx.dirty = false
	psgs.Debugf("Wrote %d entries to flat index @ %s\n", idx.tree.Len(), idx.path)
	return nil
}

func (idx *flatIndex) Close() error {
	err := idx.Flush()
	idx.tree = btree.NewG(flatDegree, flatLess)
	return err
}

/*
Package storage provides the node index and data file layers a persistent graph
is built on.

A graph directory holds a data file of node records and a node index mapping
each node id to an 8-byte descriptor: the node's type id, its adjacency entry
count, and the offset of its record in the data file.  The index is provided by
a pluggable engine.  Each engine registers itself at init time:

	storage.RegisterEngine(e)

and is looked up by the name persisted in the graph metadata.  Engines bundled
with this module are "flat" (this package) and "badger" (storage/badger, which
needs a blank import to register).
*/
package storage

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/blang/semver"

	"github.com/psgs/psgs/psgs"
)

// Index maps node ids to descriptors.  Id 0 is never stored.
type Index interface {
	// Get returns the descriptor for id.  A missing id is not an error.
	Get(id uint32) (d Descriptor, found bool, err error)

	// Put inserts or replaces the descriptor for id.
	Put(id uint32, d Descriptor) error

	// ForEach calls fn for every entry in ascending id order and stops at the
	// first error.
	ForEach(fn func(id uint32, d Descriptor) error) error

	// Flush persists pending writes.
	Flush() error

	// Close flushes unless the index is read-only and releases all handles.
	Close() error
}

// IndexOptions are passed to an engine when opening an index.
type IndexOptions struct {
	// Path is the index directory.  It is created unless ReadOnly is set.
	Path string

	// Order is the byte order of descriptors.
	Order binary.ByteOrder

	ReadOnly bool

	// SyncWrites forces every flush to reach the disk before returning.
	SyncWrites bool

	// LowMemory asks the engine to trade speed for a small footprint.
	LowMemory bool
}

func (opts IndexOptions) order() binary.ByteOrder {
	if opts.Order == nil {
		return binary.BigEndian
	}
	return opts.Order
}

// Engine is an index implementation.
type Engine interface {
	GetName() string
	GetDescription() string
	GetSemVer() semver.Version
	String() string

	// OpenIndex opens or creates an index.
	OpenIndex(opts IndexOptions) (Index, error)
}

var availEngines map[string]Engine

// RegisterEngine registers an Engine for use by graphs.
func RegisterEngine(e Engine) {
	if availEngines == nil {
		availEngines = map[string]Engine{e.GetName(): e}
	} else {
		availEngines[e.GetName()] = e
	}
}

// GetEngine returns the engine registered under name.
func GetEngine(name string) (Engine, error) {
	e, found := availEngines[name]
	if !found {
		return nil, fmt.Errorf("%w: index engine %q not available, have %s", psgs.ErrBadPersistedState, name, EnginesAvailable())
	}
	return e, nil
}

// EnginesAvailable returns a description of the available index engines.
func EnginesAvailable() string {
	var engines []string
	for _, e := range availEngines {
		engines = append(engines, e.String())
	}
	sort.Strings(engines)
	return strings.Join(engines, "; ")
}

// CheckEngineVersion returns an error if an index written by the given engine
// version can't be read by the registered engine of that name.  Only major
// versions need to agree.
func CheckEngineVersion(name, version string) (Engine, error) {
	e, err := GetEngine(name)
	if err != nil {
		return nil, err
	}
	if version == "" {
		return e, nil
	}
	written, err := semver.Make(version)
	if err != nil {
		return nil, psgs.BadStatef("bad %s engine version %q: %v", name, version, err)
	}
	if written.Major != e.GetSemVer().Major {
		return nil, psgs.BadStatef("index written by %s engine %s, can only read %d.x.x", name, written, e.GetSemVer().Major)
	}
	return e, nil
}

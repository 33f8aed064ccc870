package graph

import (
	"encoding/binary"
	"fmt"

	"github.com/psgs/psgs/psgs"
	"github.com/psgs/psgs/storage"
)

const (
	// DefaultNodeCacheSize is the number of slots of the node cache of an
	// ExistingGraph.
	DefaultNodeCacheSize = 1 << 18

	// DefaultIndexEngine is the node index engine of newly written graphs.
	DefaultIndexEngine = "badger"
)

// Config holds the tunables of a graph.  Zero values fall back to defaults.
type Config struct {
	// ByteOrder of newly written graphs: "big", "little" or "native".  Existing
	// graphs keep the order they were written with.
	ByteOrder string `toml:"byte_order"`

	// IndexEngine names the storage engine of the node index written by
	// NewGraph.Write and ExistingGraph.Close.  Empty keeps the source engine,
	// and new graphs get DefaultIndexEngine.
	IndexEngine string `toml:"index_engine"`

	// NodeCacheSize is rounded up to a power of two.
	NodeCacheSize int `toml:"node_cache_size"`

	// DescriptorCacheMB sizes the descriptor cache in front of the node index.
	// Zero disables it.
	DescriptorCacheMB int `toml:"descriptor_cache_mb"`

	WriteBufferSize int  `toml:"write_buffer_size"`
	SyncWrites      bool `toml:"sync_writes"`

	// LowMemory is passed to the index engine.
	LowMemory bool `toml:"low_memory"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		ByteOrder:       "native",
		NodeCacheSize:   DefaultNodeCacheSize,
		WriteBufferSize: storage.DefaultWriteBufferSize,
		SyncWrites:      true,
	}
}

func (c Config) order() (binary.ByteOrder, error) {
	order, err := psgs.ParseByteOrder(c.ByteOrder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", psgs.ErrUsage, err)
	}
	return order, nil
}

func (c Config) nodeCacheSize() int {
	if c.NodeCacheSize <= 0 {
		return DefaultNodeCacheSize
	}
	return psgs.UpperPowerOf2(c.NodeCacheSize)
}

func (c Config) indexEngine(fallback string) string {
	if c.IndexEngine != "" {
		return c.IndexEngine
	}
	if fallback != "" {
		return fallback
	}
	return DefaultIndexEngine
}

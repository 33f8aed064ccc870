package graph

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blang/semver"

	"github.com/psgs/psgs/psgs"
)

// Files of a graph directory.
const (
	MetadataFile = "metadata.json"
	DataFile     = "data"
	IndexDir     = "node-index"
)

// ProtocolVersion is the version of the directory layout written by this
// package.  Directories with a higher major version are rejected.
const ProtocolVersion = "1.0.0"

// FormatFull is the only persisted format: a data file of all node records and
// an index of all nodes.
const FormatFull = "full"

// Metadata is the content of metadata.json.
type Metadata struct {
	ProtocolVersion    string           `json:"protocol_version"`
	Format             string           `json:"format"`
	ByteOrder          string           `json:"byte_order"`
	NodeCount          int64            `json:"node_count"`
	MinNodeIDBound     uint32           `json:"min_node_id_bound"`
	MaxNodeIDBound     uint32           `json:"max_node_id_bound"`
	NodeTypes          map[string]uint8 `json:"node_types"`
	EdgeModels         map[string]uint8 `json:"edge_models"`
	IndexEngine        string           `json:"index_engine"`
	IndexEngineVersion string           `json:"index_engine_version,omitempty"`
	DataSize           uint64           `json:"data_size"`
	Stats              Stats            `json:"stats"`
}

// ReadMetadata reads and validates the metadata of a graph directory.
func ReadMetadata(dir string) (*Metadata, error) {
	filename := filepath.Join(dir, MetadataFile)
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, psgs.BadStatef("no graph metadata at %s", filename)
		}
		return nil, err
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, psgs.BadStatef("can't parse %s: %v", filename, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &m, nil
}

func (m *Metadata) validate() error {
	ver, err := semver.Make(m.ProtocolVersion)
	if err != nil {
		return psgs.BadStatef("bad protocol version %q: %v", m.ProtocolVersion, err)
	}
	if ver.Major > semver.MustParse(ProtocolVersion).Major {
		return psgs.BadStatef("protocol version %s isn't supported, can read up to %s", ver, ProtocolVersion)
	}
	if m.Format != FormatFull {
		return psgs.BadStatef("unknown graph format %q", m.Format)
	}
	if _, err := m.Order(); err != nil {
		return err
	}
	if m.IndexEngine == "" {
		return psgs.BadStatef("no index engine given")
	}
	return nil
}

// Order returns the byte order of the graph data.
func (m *Metadata) Order() (binary.ByteOrder, error) {
	switch m.ByteOrder {
	case "big":
		return binary.BigEndian, nil
	case "little":
		return binary.LittleEndian, nil
	default:
		return nil, psgs.BadStatef("bad byte order %q", m.ByteOrder)
	}
}

// checkSchema verifies every persisted node type and edge model is in the schema.
func (m *Metadata) checkSchema(s *Schema) error {
	for name := range m.NodeTypes {
		if _, found := s.types[name]; !found {
			return psgs.BadStatef("node type %q isn't in the schema", name)
		}
	}
	for name := range m.EdgeModels {
		if _, found := s.models[name]; !found {
			return psgs.BadStatef("edge model %q isn't in the schema", name)
		}
	}
	return nil
}

func (m *Metadata) write(dir string, sync bool) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, MetadataFile))
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if sync {
		if err := f.Sync(); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

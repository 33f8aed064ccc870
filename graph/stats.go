package graph

import (
	"encoding/binary"

	"github.com/psgs/psgs/psgs"
)

// Stats are aggregate counts over a written graph.
type Stats struct {
	// NodeCounts is the number of nodes per node type.
	NodeCounts map[string]int64 `json:"node_counts"`

	// EdgeStats describes each multi edge model.
	EdgeStats map[string]EdgeStat `json:"edge_stats"`

	// UniqueEdgeCounts is the number of set edges per unique model.
	UniqueEdgeCounts map[string]int64 `json:"unique_edge_counts"`
}

// EdgeStat counts the nodes with edges of a multi model and their edges.
type EdgeStat struct {
	Nodes               int64   `json:"nodes"`
	TotalEdges          int64   `json:"total_edges"`
	AverageEdgesPerNode float64 `json:"average_edges_per_node"`
}

type statsCollector struct {
	nodes  map[uint8]int64
	multi  map[uint8]*EdgeStat
	unique map[uint8]int64
}

func newStatsCollector() *statsCollector {
	return &statsCollector{
		nodes:  make(map[uint8]int64),
		multi:  make(map[uint8]*EdgeStat),
		unique: make(map[uint8]int64),
	}
}

func (s *statsCollector) addNode(typeID uint8) {
	s.nodes[typeID]++
}

func (s *statsCollector) addEdges(modelID uint8, unique bool, count int) {
	if unique {
		s.unique[modelID] += int64(count)
		return
	}
	st := s.multi[modelID]
	if st == nil {
		st = new(EdgeStat)
		s.multi[modelID] = st
	}
	st.Nodes++
	st.TotalEdges += int64(count)
}

// addRawEntry counts a persisted adjacency entry without decoding it.
func (s *statsCollector) addRawEntry(g *graphBase, modelID uint8, entry []byte, order binary.ByteOrder) error {
	def, err := g.modelDefByID(modelID)
	if err != nil {
		return err
	}
	if def.Unique() {
		s.addEdges(modelID, true, 1)
		return nil
	}
	if len(entry) < 4 {
		return psgs.Corruptedf("%s entry of %d bytes", def.Name(), len(entry))
	}
	s.addEdges(modelID, false, int(order.Uint32(entry[0:4])))
	return nil
}

func (s *statsCollector) result(g *graphBase) Stats {
	st := Stats{
		NodeCounts:       make(map[string]int64),
		EdgeStats:        make(map[string]EdgeStat),
		UniqueEdgeCounts: make(map[string]int64),
	}
	for id, n := range s.nodes {
		name, _ := g.types.name(id)
		st.NodeCounts[name] = n
	}
	for id, es := range s.multi {
		name, _ := g.modelIDs.name(id)
		out := *es
		if out.Nodes > 0 {
			out.AverageEdgesPerNode = float64(out.TotalEdges) / float64(out.Nodes)
		}
		st.EdgeStats[name] = out
	}
	for id, n := range s.unique {
		name, _ := g.modelIDs.name(id)
		st.UniqueEdgeCounts[name] = n
	}
	return st
}

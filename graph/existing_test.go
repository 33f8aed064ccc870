package graph

import (
	"bytes"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/psgs/psgs/psgs"
	"github.com/psgs/psgs/record"
	"github.com/psgs/psgs/storage"
)

func writeSample(t *testing.T, cfg Config) (dir string, g *MemGraph) {
	t.Helper()
	g, _ = buildSample(t, cfg)
	dir = filepath.Join(t.TempDir(), "graph")
	if err := g.Write(dir); err != nil {
		t.Fatalf("Can't write sample graph: %v\n", err)
	}
	return dir, g
}

func openGraph(t *testing.T, dir string, cfg Config) *ExistingGraph {
	t.Helper()
	g, err := Open(dir, testSchema(t), cfg)
	if err != nil {
		t.Fatalf("Can't open graph @ %s: %v\n", dir, err)
	}
	return g
}

func updateGraph(t *testing.T, src, dst string, cfg Config) *ExistingGraph {
	t.Helper()
	g, err := CopyForUpdating(src, dst, testSchema(t), cfg)
	if err != nil {
		t.Fatalf("Can't open graph @ %s for updating: %v\n", src, err)
	}
	return g
}

func node(t *testing.T, g Graph, id uint32) *Node {
	t.Helper()
	n, err := g.Node(id)
	if err != nil || n == nil {
		t.Fatalf("Can't get node %d: %v\n", id, err)
	}
	return n
}

// rawRecords returns the record bytes of every node of a graph directory.
func rawRecords(t *testing.T, dir string) map[uint32][]byte {
	t.Helper()
	meta, err := ReadMetadata(dir)
	ok(t, err)
	order, err := meta.Order()
	ok(t, err)
	engine, err := storage.GetEngine(meta.IndexEngine)
	ok(t, err)
	df, err := storage.OpenDataFile(filepath.Join(dir, DataFile))
	ok(t, err)
	defer df.Close()
	idx, err := engine.OpenIndex(storage.IndexOptions{Path: filepath.Join(dir, IndexDir), Order: order, ReadOnly: true})
	ok(t, err)
	defer idx.Close()

	records := make(map[uint32][]byte)
	err = idx.ForEach(func(id uint32, d storage.Descriptor) error {
		_, size, err := storage.WalkRecord(df.Bytes(), d.Offset, int(d.AdjCount), order, nil)
		if err != nil {
			return err
		}
		records[id] = bytes.Clone(df.Bytes()[d.Offset : d.Offset+uint64(size)])
		return nil
	})
	ok(t, err)
	return records
}

// mutate applies the same changes to any graph built by buildSample.
func mutate(t *testing.T, g Graph) {
	t.Helper()
	m := bind(t, g)
	ok(t, g.RemoveNode(node(t, g, 4)))
	p := addPerson(t, g, "newcomer")
	ok(t, edges(t, m.friend, p).AddNode(node(t, g, 1), 9))
	ok(t, m.spouse.Set(p, node(t, g, 2), record.Empty{}))
	ok(t, m.ledBy.Set(node(t, g, 10), p, 1))
	n6 := node(t, g, 6)
	n6.Data().(*Person).Name = "renamed"
	ok(t, n6.OnChange())
}

func TestRoundTrip(t *testing.T) {
	for _, engine := range []string{"flat", "badger"} {
		for _, order := range []string{"big", "little"} {
			cfg := testConfig()
			cfg.IndexEngine = engine
			cfg.ByteOrder = order
			dir, mg := writeSample(t, cfg)
			want := dump(t, mg)

			g := openGraph(t, dir, cfg)
			if got := dump(t, g); got != want {
				t.Errorf("%s/%s: graph changed after round trip.\nExpected:\n%s\nGot:\n%s\n", engine, order, want, got)
			}
			if g.NodeCount() != mg.NodeCount() {
				t.Errorf("%s/%s: expected %d nodes, got %d\n", engine, order, mg.NodeCount(), g.NodeCount())
			}
			if !maps.Equal(g.types.table(), mg.types.table()) || !maps.Equal(g.modelIDs.table(), mg.modelIDs.table()) {
				t.Errorf("%s/%s: type registries differ\n", engine, order)
			}
			meta := g.Metadata()
			if meta.IndexEngine != engine || meta.ByteOrder != order {
				t.Errorf("%s/%s: metadata has engine %s and order %s\n", engine, order, meta.IndexEngine, meta.ByteOrder)
			}
			ok(t, g.Close())

			if _, err := Verify(dir); err != nil {
				t.Errorf("%s/%s: verify failed: %v\n", engine, order, err)
			}
		}
	}
}

func TestEngineParity(t *testing.T) {
	cfg := testConfig()
	cfg.IndexEngine = "flat"
	flatDir, _ := writeSample(t, cfg)
	cfg.IndexEngine = "badger"
	badgerDir, _ := writeSample(t, cfg)

	flatData, err := os.ReadFile(filepath.Join(flatDir, DataFile))
	ok(t, err)
	badgerData, err := os.ReadFile(filepath.Join(badgerDir, DataFile))
	ok(t, err)
	if !bytes.Equal(flatData, badgerData) {
		t.Errorf("Data files differ between index engines\n")
	}
	fg, bg := openGraph(t, flatDir, cfg), openGraph(t, badgerDir, cfg)
	defer fg.Close()
	defer bg.Close()
	if dump(t, fg) != dump(t, bg) {
		t.Errorf("Graphs differ between index engines\n")
	}
}

func TestMetadataStats(t *testing.T) {
	dir, _ := writeSample(t, testConfig())
	meta, err := ReadMetadata(dir)
	ok(t, err)
	if meta.NodeCount != 10 || meta.MinNodeIDBound != 1 || meta.MaxNodeIDBound != 10 {
		t.Errorf("Bad node count or bounds: %d [%d, %d]\n", meta.NodeCount, meta.MinNodeIDBound, meta.MaxNodeIDBound)
	}
	if meta.ProtocolVersion != ProtocolVersion || meta.Format != FormatFull {
		t.Errorf("Bad protocol %q or format %q\n", meta.ProtocolVersion, meta.Format)
	}
	st := meta.Stats
	if st.NodeCounts["Person"] != 8 || st.NodeCounts["Company"] != 2 {
		t.Errorf("Bad node counts: %v\n", st.NodeCounts)
	}
	expected := map[string]EdgeStat{
		"friend":      {Nodes: 8, TotalEdges: 20, AverageEdgesPerNode: 2.5},
		"follows":     {Nodes: 7, TotalEdges: 7, AverageEdgesPerNode: 1},
		"followed_by": {Nodes: 7, TotalEdges: 7, AverageEdgesPerNode: 1},
		"likes":       {Nodes: 7, TotalEdges: 7, AverageEdgesPerNode: 1},
		"employs":     {Nodes: 2, TotalEdges: 6, AverageEdgesPerNode: 3},
	}
	if !maps.Equal(st.EdgeStats, expected) {
		t.Errorf("Expected edge stats %v, got %v\n", expected, st.EdgeStats)
	}
	expectedUnique := map[string]int64{"spouse": 4, "works_at": 6, "ceo_of": 2, "led_by": 2, "best_friend": 1}
	if !maps.Equal(st.UniqueEdgeCounts, expectedUnique) {
		t.Errorf("Expected unique edge counts %v, got %v\n", expectedUnique, st.UniqueEdgeCounts)
	}

	// Compaction recounts moved records without decoding them.
	dst := filepath.Join(t.TempDir(), "copy")
	g := updateGraph(t, dir, dst, testConfig())
	ok(t, g.Close())
	copied, err := ReadMetadata(dst)
	ok(t, err)
	if !maps.Equal(copied.Stats.EdgeStats, expected) || !maps.Equal(copied.Stats.UniqueEdgeCounts, expectedUnique) {
		t.Errorf("Stats changed by compaction: %v\n", copied.Stats)
	}
}

func TestCompactionWithoutChanges(t *testing.T) {
	dir, _ := writeSample(t, testConfig())
	dst := filepath.Join(t.TempDir(), "copy")
	g := updateGraph(t, dir, dst, testConfig())
	ok(t, g.Close())

	before, err := os.ReadFile(filepath.Join(dir, DataFile))
	ok(t, err)
	after, err := os.ReadFile(filepath.Join(dst, DataFile))
	ok(t, err)
	if !bytes.Equal(before, after) {
		t.Errorf("Compaction without changes altered the data file\n")
	}
}

func TestCompactionMovesUnchangedRecords(t *testing.T) {
	dir, mg := writeSample(t, testConfig())
	dst := filepath.Join(t.TempDir(), "copy")
	g := updateGraph(t, dir, dst, testConfig())
	m := bind(t, g)
	ok(t, edges(t, m.likes, node(t, g, 2)).Add(5000, 5))
	ok(t, g.Close())

	before, after := rawRecords(t, dir), rawRecords(t, dst)
	if len(before) != len(after) {
		t.Fatalf("Expected %d records after compaction, got %d\n", len(before), len(after))
	}
	for id, rec := range before {
		same := bytes.Equal(rec, after[id])
		if id == 2 && same {
			t.Errorf("Changed node 2 kept its record\n")
		}
		if id != 2 && !same {
			t.Errorf("Unchanged node %d has a different record after compaction\n", id)
		}
	}

	mm := bind(t, mg)
	ok(t, edges(t, mm.likes, node(t, mg, 2)).Add(5000, 5))
	cg := openGraph(t, dst, testConfig())
	defer cg.Close()
	if got, want := dump(t, cg), dump(t, mg); got != want {
		t.Errorf("Compacted graph differs.\nExpected:\n%s\nGot:\n%s\n", want, got)
	}
}

func TestInPlaceUpdate(t *testing.T) {
	dir, mg := writeSample(t, testConfig())
	g := updateGraph(t, dir, dir, testConfig())
	mutate(t, g)
	ok(t, g.Close())

	mutate(t, mg)
	want := dump(t, mg)
	cg := openGraph(t, dir, testConfig())
	if got := dump(t, cg); got != want {
		t.Errorf("Updated graph differs.\nExpected:\n%s\nGot:\n%s\n", want, got)
	}
	if cg.NodeCount() != mg.NodeCount() {
		t.Errorf("Expected %d nodes, got %d\n", mg.NodeCount(), cg.NodeCount())
	}
	ok(t, cg.Close())
	if _, err := Verify(dir); err != nil {
		t.Errorf("Verify failed after in-place update: %v\n", err)
	}

	entries, err := os.ReadDir(filepath.Dir(dir))
	ok(t, err)
	if len(entries) != 1 || entries[0].Name() != filepath.Base(dir) {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Leftover directories after swap: %v\n", names)
	}
}

func TestChangesVisibleBeforeClose(t *testing.T) {
	dir, mg := writeSample(t, testConfig())
	g := openGraph(t, dir, testConfig())
	defer g.Close()
	mutate(t, g)
	mutate(t, mg)
	if got, want := dump(t, g), dump(t, mg); got != want {
		t.Errorf("Overlay view differs.\nExpected:\n%s\nGot:\n%s\n", want, got)
	}
	if used, err := g.IsNodeIDUsed(4); err != nil || used {
		t.Errorf("Removed node 4 reported used: %t %v\n", used, err)
	}
	if n, err := g.Node(4); err != nil || n != nil {
		t.Errorf("Removed node 4 still found: %v %v\n", n, err)
	}
}

func TestReadOnlyDiscardsChanges(t *testing.T) {
	dir, mg := writeSample(t, testConfig())
	want := dump(t, mg)
	g := openGraph(t, dir, testConfig())
	mutate(t, g)
	ok(t, g.Close())
	ok(t, g.Close())

	g = openGraph(t, dir, testConfig())
	defer g.Close()
	if got := dump(t, g); got != want {
		t.Errorf("Read-only graph was changed on disk.\nExpected:\n%s\nGot:\n%s\n", want, got)
	}
}

func TestRemoveAllWithoutEdgesKeepsNodeClean(t *testing.T) {
	dir, _ := writeSample(t, testConfig())
	g := openGraph(t, dir, testConfig())
	defer g.Close()
	m := bind(t, g)
	acme := node(t, g, 9)
	if acme.IsDirty() {
		t.Fatalf("Freshly loaded node is dirty\n")
	}
	ok(t, edges(t, m.friend, acme).RemoveAll())
	ok(t, edges(t, m.friend, acme).RemoveAll())
	if acme.IsDirty() {
		t.Errorf("Removing no edges marked node dirty\n")
	}
	if _, inOverlay := g.overlay[acme.ID()]; inOverlay {
		t.Errorf("Removing no edges promoted node to the overlay\n")
	}

	// A usage error leaves the node clean too.
	if err := edges(t, m.friend, acme).Add(999, 1); !errors.Is(err, psgs.ErrUnknownTarget) {
		t.Errorf("Expected unknown target error, got %v\n", err)
	}
	if acme.IsDirty() {
		t.Errorf("Failed edge addition marked node dirty\n")
	}
}

func TestZeroNodeIDExisting(t *testing.T) {
	dir, _ := writeSample(t, testConfig())
	g := openGraph(t, dir, testConfig())
	defer g.Close()
	if _, err := g.Node(0); !errors.Is(err, psgs.ErrZeroNodeID) {
		t.Errorf("Node(0) gave %v\n", err)
	}
	if _, err := g.IsNodeIDUsed(0); !errors.Is(err, psgs.ErrZeroNodeID) {
		t.Errorf("IsNodeIDUsed(0) gave %v\n", err)
	}
	if _, err := g.nodeForChange(0); !errors.Is(err, psgs.ErrZeroNodeID) {
		t.Errorf("nodeForChange(0) gave %v\n", err)
	}
}

func TestStaleHandle(t *testing.T) {
	dir, _ := writeSample(t, testConfig())
	cfg := testConfig()
	cfg.NodeCacheSize = 1
	g := openGraph(t, dir, cfg)
	defer g.Close()
	m := bind(t, g)

	n1 := node(t, g, 1)
	node(t, g, 2)
	reloaded := node(t, g, 1)
	if reloaded == n1 {
		t.Fatalf("Single slot cache kept node 1 while loading node 2\n")
	}
	ok(t, reloaded.OnChange())
	if err := n1.OnChange(); !errors.Is(err, psgs.ErrUsage) {
		t.Errorf("Expected usage error changing stale handle, got %v\n", err)
	}
	if err := edges(t, m.likes, n1).Add(77, 1); !errors.Is(err, psgs.ErrUsage) {
		t.Errorf("Expected usage error adding edge to stale handle, got %v\n", err)
	}
	if node(t, g, 1) != reloaded {
		t.Errorf("Changed node not served from the overlay\n")
	}
}

func TestReuseOfRemovedID(t *testing.T) {
	dir, _ := writeSample(t, testConfig())
	g := updateGraph(t, dir, dir, testConfig())
	found, err := g.RemoveNodeByID(5)
	ok(t, err)
	if !found {
		t.Fatalf("Node 5 not found\n")
	}
	n, err := g.GetOrCreateNode(5, func(uint32) *Node { return NewNode(&Person{Name: "again"}) })
	ok(t, err)
	if n.ID() != 5 || g.NodeCount() != 10 {
		t.Fatalf("Expected node 5 recreated among 10 nodes, got %d among %d\n", n.ID(), g.NodeCount())
	}
	ok(t, g.RemoveNode(n))
	ok(t, g.Close())

	g = openGraph(t, dir, testConfig())
	defer g.Close()
	if used, err := g.IsNodeIDUsed(5); err != nil || used {
		t.Errorf("Removed node 5 came back: %t %v\n", used, err)
	}
	var count int64
	ok(t, g.ForEachNode(func(*Node) error {
		count++
		return nil
	}))
	if count != 9 || g.NodeCount() != 9 {
		t.Errorf("Expected 9 nodes, walked %d with count %d\n", count, g.NodeCount())
	}
}

func TestDescriptorCache(t *testing.T) {
	dir, mg := writeSample(t, testConfig())
	cfg := testConfig()
	cfg.DescriptorCacheMB = 1
	g := openGraph(t, dir, cfg)
	defer g.Close()
	if got, want := dump(t, g), dump(t, mg); got != want {
		t.Errorf("Graph differs behind descriptor cache.\nExpected:\n%s\nGot:\n%s\n", want, got)
	}
	if got, want := dump(t, g), dump(t, mg); got != want {
		t.Errorf("Graph differs on cached reads\n")
	}
}

func TestEngineChangeOnCompaction(t *testing.T) {
	dir, mg := writeSample(t, testConfig())
	cfg := testConfig()
	cfg.IndexEngine = "badger"
	dst := filepath.Join(t.TempDir(), "badger")
	g := updateGraph(t, dir, dst, cfg)
	ok(t, g.Close())

	meta, err := ReadMetadata(dst)
	ok(t, err)
	if meta.IndexEngine != "badger" {
		t.Errorf("Expected badger index, got %s\n", meta.IndexEngine)
	}
	cfg.IndexEngine = ""
	cg := openGraph(t, dst, cfg)
	defer cg.Close()
	if got, want := dump(t, cg), dump(t, mg); got != want {
		t.Errorf("Graph differs after index engine change\n")
	}
}

func TestDefaultConfigKeepsEngine(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SyncWrites = false

	dir, _ := writeSample(t, testConfig())
	dst := filepath.Join(t.TempDir(), "compacted")
	ok(t, updateGraph(t, dir, dst, cfg).Close())
	meta, err := ReadMetadata(dst)
	ok(t, err)
	if meta.IndexEngine != "flat" {
		t.Errorf("Expected compaction to keep the flat index, got %s\n", meta.IndexEngine)
	}

	fresh := filepath.Join(t.TempDir(), "fresh")
	g, _ := buildSample(t, cfg)
	ok(t, g.Write(fresh))
	meta, err = ReadMetadata(fresh)
	ok(t, err)
	if meta.IndexEngine != DefaultIndexEngine {
		t.Errorf("Expected new graph with %s index, got %s\n", DefaultIndexEngine, meta.IndexEngine)
	}
}

func TestBadPersistedState(t *testing.T) {
	dir, _ := writeSample(t, testConfig())

	if _, err := Open(filepath.Join(t.TempDir(), "nothing"), testSchema(t), testConfig()); !errors.Is(err, psgs.ErrBadPersistedState) {
		t.Errorf("Expected bad state opening missing graph, got %v\n", err)
	}

	partial := NewSchema()
	ok(t, partial.RegisterNodeType("Person", func() NodeData { return new(Person) }))
	if _, err := Open(dir, partial, testConfig()); !errors.Is(err, psgs.ErrBadPersistedState) {
		t.Errorf("Expected bad state opening with partial schema, got %v\n", err)
	}

	tamper := func(change func(*Metadata)) string {
		tampered := filepath.Join(t.TempDir(), "tampered")
		g := updateGraph(t, dir, tampered, testConfig())
		ok(t, g.Close())
		meta, err := ReadMetadata(tampered)
		ok(t, err)
		change(meta)
		ok(t, meta.write(tampered, false))
		return tampered
	}
	cases := map[string]func(*Metadata){
		"protocol": func(m *Metadata) { m.ProtocolVersion = "2.0.0" },
		"format":   func(m *Metadata) { m.Format = "delta" },
		"order":    func(m *Metadata) { m.ByteOrder = "middle" },
		"engine":   func(m *Metadata) { m.IndexEngine = "nosuch" },
		"version":  func(m *Metadata) { m.IndexEngineVersion = "9.0.0" },
		"types":    func(m *Metadata) { m.NodeTypes["Person"] = m.NodeTypes["Company"] },
	}
	for name, change := range cases {
		if _, err := Open(tamper(change), testSchema(t), testConfig()); !errors.Is(err, psgs.ErrBadPersistedState) {
			t.Errorf("%s: expected bad state, got %v\n", name, err)
		}
	}

	minor := tamper(func(m *Metadata) { m.ProtocolVersion = "1.3.0" })
	g := openGraph(t, minor, testConfig())
	ok(t, g.Close())
}

func TestCorruption(t *testing.T) {
	dir, _ := writeSample(t, testConfig())
	datafile := filepath.Join(dir, DataFile)
	data, err := os.ReadFile(datafile)
	ok(t, err)
	ok(t, os.WriteFile(datafile, data[:len(data)-8], 0644))

	if _, err := Open(dir, testSchema(t), testConfig()); !errors.Is(err, psgs.ErrCorrupted) {
		t.Errorf("Expected corruption opening truncated graph, got %v\n", err)
	}
	if _, err := Verify(dir); !errors.Is(err, psgs.ErrCorrupted) {
		t.Errorf("Expected verify to find corruption, got %v\n", err)
	}

	// A bad adjacency entry size surfaces when the node is loaded.
	ok(t, os.WriteFile(datafile, data, 0644))
	records := rawRecords(t, dir)
	meta, err := ReadMetadata(dir)
	ok(t, err)
	order, err := meta.Order()
	ok(t, err)
	rec := records[1]
	off := bytes.Index(data, rec)
	payloadSize := psgs.RoundUp4(int(order.Uint32(rec[0:4])))
	order.PutUint32(data[off+4+payloadSize+4:], 1<<20)
	ok(t, os.WriteFile(datafile, data, 0644))

	g := openGraph(t, dir, testConfig())
	defer g.Close()
	if _, err := g.Node(1); !errors.Is(err, psgs.ErrCorrupted) {
		t.Errorf("Expected corruption loading node 1, got %v\n", err)
	}
	if _, err := Verify(dir); !errors.Is(err, psgs.ErrCorrupted) {
		t.Errorf("Expected verify to find corruption, got %v\n", err)
	}
}

func TestVerifyReport(t *testing.T) {
	dir, _ := writeSample(t, testConfig())
	report, err := Verify(dir)
	ok(t, err)
	records := rawRecords(t, dir)
	var total uint64
	for _, rec := range records {
		total += uint64(len(rec))
	}
	if report.Nodes != 10 || report.RecordBytes != total || report.DataSize != total {
		t.Errorf("Unexpected verify report %+v, records total %d bytes\n", report, total)
	}
	ids := slices.Sorted(maps.Keys(records))
	if !slices.Equal(ids, []uint32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}) {
		t.Errorf("Unexpected ids %v\n", ids)
	}
	if report.Entries == 0 {
		t.Errorf("No adjacency entries counted\n")
	}
}

func TestReindex(t *testing.T) {
	dir, mg := writeSample(t, testConfig())
	cfg := testConfig()
	cfg.IndexEngine = "badger"
	dst := filepath.Join(t.TempDir(), "reindexed")
	ok(t, Reindex(dir, dst, cfg))

	before, err := ReadMetadata(dir)
	ok(t, err)
	after, err := ReadMetadata(dst)
	ok(t, err)
	if after.IndexEngine != "badger" || after.NodeCount != before.NodeCount {
		t.Errorf("Unexpected reindexed metadata: %+v\n", after)
	}
	if !maps.Equal(after.Stats.EdgeStats, before.Stats.EdgeStats) || !maps.Equal(after.Stats.NodeCounts, before.Stats.NodeCounts) {
		t.Errorf("Stats not carried over by reindex\n")
	}
	srcData, err := os.ReadFile(filepath.Join(dir, DataFile))
	ok(t, err)
	dstData, err := os.ReadFile(filepath.Join(dst, DataFile))
	ok(t, err)
	if !bytes.Equal(srcData, dstData) {
		t.Errorf("Reindex changed the data file\n")
	}
	g := openGraph(t, dst, testConfig())
	if got, want := dump(t, g), dump(t, mg); got != want {
		t.Errorf("Reindexed graph differs.\nExpected:\n%s\nGot:\n%s\n", want, got)
	}
	ok(t, g.Close())

	// Back to the flat engine in place.
	cfg.IndexEngine = "flat"
	ok(t, Reindex(dst, dst, cfg))
	if _, err := Verify(dst); err != nil {
		t.Errorf("Verify failed after in-place reindex: %v\n", err)
	}
}

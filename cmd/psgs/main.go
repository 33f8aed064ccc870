// Command-line tool for inspecting and maintaining persistent graph directories.

package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/psgs/psgs/graph"
	"github.com/psgs/psgs/psgs"
	"github.com/psgs/psgs/storage"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Path to TOML configuration file.
	configFile = flag.String("config", "", "")
)

const helpMessage = `
psgs inspects and maintains persistent graph directories

Usage: psgs [options] <command>

      -config     =string   TOML configuration file with [logging] and [graph] tables.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

Commands:

	about
	help
	stats   <graph path>
	verify  <graph path>
	reindex <graph path> [<destination path>]

reindex rewrites the node index with the index_engine of the [graph] table,
in place unless a destination is given.
`

var usage = func() {
	fmt.Print(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	if *runVerbose {
		psgs.SetLogMode(psgs.DebugMode)
	}
	tc, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	tc.Logging.SetLogger()
	defer psgs.Shutdown()

	if err := DoCommand(tc, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		psgs.Shutdown()
		os.Exit(1)
	}
}

// DoCommand serves as a switchboard for commands.
func DoCommand(tc *tomlConfig, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("blank command")
	}
	switch args[0] {
	case "about":
		fmt.Printf("psgs protocol %s, index engines: %s\n", graph.ProtocolVersion, storage.EnginesAvailable())
		return nil
	case "stats":
		if len(args) != 2 {
			return fmt.Errorf("usage: psgs stats <graph path>")
		}
		return doStats(args[1])
	case "verify":
		if len(args) != 2 {
			return fmt.Errorf("usage: psgs verify <graph path>")
		}
		return doVerify(args[1])
	case "reindex":
		switch len(args) {
		case 2:
			return graph.Reindex(args[1], args[1], tc.Graph)
		case 3:
			return graph.Reindex(args[1], args[2], tc.Graph)
		default:
			return fmt.Errorf("usage: psgs reindex <graph path> [<destination path>]")
		}
	default:
		return fmt.Errorf("unknown command %q, try 'psgs help'", args[0])
	}
}

func doStats(dir string) error {
	meta, err := graph.ReadMetadata(dir)
	if err != nil {
		return err
	}
	fmt.Printf("Graph @ %s\n", dir)
	fmt.Printf("  protocol %s, format %s, %s endian\n", meta.ProtocolVersion, meta.Format, meta.ByteOrder)
	fmt.Printf("  %s nodes, ids %d to %d\n", humanize.Comma(meta.NodeCount), meta.MinNodeIDBound, meta.MaxNodeIDBound)
	fmt.Printf("  %s of node data, %s index %s\n", humanize.Bytes(meta.DataSize), meta.IndexEngine, meta.IndexEngineVersion)

	fmt.Printf("\nNode types:\n")
	for _, name := range sortedKeys(meta.NodeTypes) {
		fmt.Printf("  %-24s id %3d  %s nodes\n", name, meta.NodeTypes[name], humanize.Comma(meta.Stats.NodeCounts[name]))
	}
	fmt.Printf("\nEdge models:\n")
	for _, name := range sortedKeys(meta.EdgeModels) {
		id := meta.EdgeModels[name]
		if st, found := meta.Stats.EdgeStats[name]; found {
			fmt.Printf("  %-24s id %3d  %s edges on %s nodes, %.2f per node\n", name, id,
				humanize.Comma(st.TotalEdges), humanize.Comma(st.Nodes), st.AverageEdgesPerNode)
		} else if n, found := meta.Stats.UniqueEdgeCounts[name]; found {
			fmt.Printf("  %-24s id %3d  %s unique edges\n", name, id, humanize.Comma(n))
		} else {
			fmt.Printf("  %-24s id %3d  no edges\n", name, id)
		}
	}
	return nil
}

func doVerify(dir string) error {
	report, err := graph.Verify(dir)
	if err != nil {
		return fmt.Errorf("graph @ %s failed verification: %w", dir, err)
	}
	fmt.Printf("Graph @ %s verified: %s nodes, %s adjacency entries, %s of records\n", dir,
		humanize.Comma(report.Nodes), humanize.Comma(report.Entries), humanize.Bytes(report.RecordBytes))
	return nil
}

func sortedKeys(m map[string]uint8) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

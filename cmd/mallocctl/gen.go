package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/mallockit/trace"
)

var genProfile trace.Profile

func init() {
	cmd := newGenCmd()
	cmd.Flags().IntVar(&genProfile.Ops, "ops", 1000, "Number of operations")
	cmd.Flags().IntVar(&genProfile.IDs, "ids", 100, "Number of distinct block ids")
	cmd.Flags().IntVar(&genProfile.MinSize, "min-size", 1, "Smallest request size")
	cmd.Flags().IntVar(&genProfile.MaxSize, "max-size", 4096, "Largest request size")
	cmd.Flags().Float64Var(&genProfile.ReallocPct, "realloc", 0.2, "Chance that an op on a live id is a realloc")
	cmd.Flags().Float64Var(&genProfile.FreePct, "free", 0.4, "Chance that an op on a live id is a free")
	cmd.Flags().Float64Var(&genProfile.WritePct, "write", 0, "Chance that an op on a live id is a write")
	cmd.Flags().Uint64Var(&genProfile.Seed, "seed", 1, "Random seed")
	rootCmd.AddCommand(cmd)
}

func newGenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen <output>",
		Short: "Generate a random trace",
		Long: `The gen command writes a random but valid trace. The same flags always
produce the same trace. Use "-" to write to stdout.

Example:
  mallocctl gen random.rep
  mallocctl gen --ops 100000 --max-size 65536 --realloc 0.5 --seed 7 big.rep
  mallocctl gen - | head`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(args)
		},
	}
	return cmd
}

func runGen(args []string) error {
	outPath := args[0]
	t := trace.Generate(genProfile)

	if outPath == "-" {
		return t.Encode(os.Stdout)
	}
	if err := t.WriteFile(outPath); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}

	st := t.Stats()
	if jsonOut {
		return printJSON(map[string]any{
			"path":            outPath,
			"ops":             len(t.Ops),
			"ids":             t.NumIDs,
			"peak_live_bytes": st.PeakLiveBytes,
		})
	}
	printInfo("Wrote %d ops (%d ids) to %s\n", len(t.Ops), t.NumIDs, outPath)
	printVerbose("  allocs %d, reallocs %d, frees %d, writes %d\n", st.Allocs, st.Reallocs, st.Frees, st.Writes)
	printInfo("  Peak live payload: %s\n", formatBytes(st.PeakLiveBytes))
	return nil
}

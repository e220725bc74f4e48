package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/mallockit/trace"
)

func init() {
	rootCmd.AddCommand(newStatsCmd())
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <trace>...",
		Short: "Show trace statistics",
		Long: `The stats command parses traces and reports op counts and the peak live
payload, the least memory any allocator could use to serve the trace.

Example:
  mallocctl stats traces/*.rep
  mallocctl stats --json short1.rep`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(args)
		},
	}
	return cmd
}

// TraceStats is the JSON form of one trace summary.
type TraceStats struct {
	Trace         string `json:"trace"`
	NumIDs        int    `json:"num_ids"`
	Ops           int    `json:"ops"`
	Allocs        int    `json:"allocs"`
	Reallocs      int    `json:"reallocs"`
	Frees         int    `json:"frees"`
	Writes        int    `json:"writes"`
	PeakLiveBytes int    `json:"peak_live_bytes"`
}

func runStats(args []string) error {
	all := make([]TraceStats, 0, len(args))
	for _, path := range args {
		t, err := trace.ParseFile(path)
		if err != nil {
			return err
		}
		st := t.Stats()
		all = append(all, TraceStats{
			Trace:         t.Name,
			NumIDs:        t.NumIDs,
			Ops:           len(t.Ops),
			Allocs:        st.Allocs,
			Reallocs:      st.Reallocs,
			Frees:         st.Frees,
			Writes:        st.Writes,
			PeakLiveBytes: st.PeakLiveBytes,
		})
	}

	if jsonOut {
		return printJSON(all)
	}

	for _, s := range all {
		printInfo("\n%s:\n", s.Trace)
		printInfo("  Ops: %d (%d ids)\n", s.Ops, s.NumIDs)
		printInfo("  Allocs: %d, Reallocs: %d, Frees: %d, Writes: %d\n", s.Allocs, s.Reallocs, s.Frees, s.Writes)
		printInfo("  Peak live payload: %s\n", formatBytes(s.PeakLiveBytes))
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/mallockit/alloc"
	"github.com/joshuapare/mallockit/internal/config"
	"github.com/joshuapare/mallockit/pkg/mallockit"
	"github.com/joshuapare/mallockit/replay"
)

var (
	runAlloc      string
	runArena      string
	runMaxSize    string
	runCheckEvery int
	runTimeout    time.Duration
	runLIFO       bool
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().StringVarP(&runAlloc, "alloc", "a", "", "Allocator: bucket, compact, bump, fixed (default from config)")
	cmd.Flags().StringVar(&runArena, "arena", "", "Arena: heap, mmap (default from config)")
	cmd.Flags().StringVar(&runMaxSize, "max-size", "", "Arena growth limit, e.g. 64MiB (default from config)")
	cmd.Flags().IntVar(&runCheckEvery, "check-every", -1, "Run the heap checker every N ops (0 = only at the end)")
	cmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Per-trace time limit")
	cmd.Flags().BoolVar(&runLIFO, "lifo", false, "Use LIFO free lists instead of address order")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <trace>...",
		Short: "Replay traces and report utilization",
		Long: `The run command replays each trace against a fresh allocator, validating
every block it hands out, and reports peak payload, arena size and space
utilization. Replay stops at the first failing trace.

Example:
  mallocctl run traces/*.rep
  mallocctl run --alloc compact --check-every 100 realloc.rep
  mallocctl run --arena mmap --max-size 256MiB --json big.rep`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), args)
		},
	}
	return cmd
}

// runReport is the JSON form of one replay.
type runReport struct {
	Trace       string       `json:"trace"`
	Ops         int          `json:"ops"`
	PeakPayload int          `json:"peak_payload"`
	ArenaBytes  int          `json:"arena_bytes"`
	Utilization float64      `json:"utilization"`
	Relocations int          `json:"relocations"`
	ElapsedUS   int64        `json:"elapsed_us"`
	Stats       *alloc.Stats `json:"stats,omitempty"`
}

type runSummary struct {
	Allocator      string      `json:"allocator"`
	Arena          string      `json:"arena"`
	Traces         []runReport `json:"traces"`
	AvgUtilization float64     `json:"avg_utilization"`
	Error          string      `json:"error,omitempty"`
}

// runOptions merges command flags over the loaded configuration.
func runOptions() (*mallockit.Options, error) {
	opts, err := mallockit.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if runAlloc != "" {
		opts.Allocator = runAlloc
	}
	if runArena != "" {
		opts.Arena = runArena
	}
	if runMaxSize != "" {
		n, err := config.ParseByteSize(runMaxSize)
		if err != nil {
			return nil, err
		}
		opts.MaxSize = int(n)
	}
	if runCheckEvery >= 0 {
		opts.CheckEvery = runCheckEvery
	}
	if runTimeout > 0 {
		opts.Timeout = runTimeout
	}
	if runLIFO {
		opts.Alloc.ListOrder = alloc.OrderLIFO
	}
	return opts, nil
}

func runRun(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opts, err := runOptions()
	if err != nil {
		return err
	}

	printVerbose("Allocator: %s, arena: %s (limit %s)\n", opts.Allocator, opts.Arena, formatBytes(opts.MaxSize))

	results, runErr := mallockit.RunFiles(ctx, args, opts)

	summary := runSummary{Allocator: opts.Allocator, Arena: opts.Arena}
	total := 0.0
	for _, r := range results {
		summary.Traces = append(summary.Traces, reportOf(r))
		total += r.Utilization
	}
	if len(results) > 0 {
		summary.AvgUtilization = total / float64(len(results))
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}

	if jsonOut {
		if err := printJSON(summary); err != nil {
			return err
		}
		return runErr
	}

	printInfo("%-24s %10s %12s %12s %7s %10s\n", "Trace", "Ops", "Peak", "Arena", "Util", "Time")
	for _, r := range summary.Traces {
		printInfo("%-24s %10d %12s %12s %6.1f%% %10s\n",
			r.Trace, r.Ops, formatBytes(r.PeakPayload), formatBytes(r.ArenaBytes),
			r.Utilization*100, time.Duration(r.ElapsedUS)*time.Microsecond)
		if verbose && r.Stats != nil {
			printStats(r.Stats)
		}
	}
	if len(summary.Traces) > 0 {
		printInfo("\nAverage utilization: %.1f%% over %d trace(s)\n", summary.AvgUtilization*100, len(summary.Traces))
	}

	if runErr != nil {
		return fmt.Errorf("replay failed: %w", runErr)
	}
	return nil
}

func reportOf(r *replay.Result) runReport {
	return runReport{
		Trace:       r.Trace,
		Ops:         r.Ops,
		PeakPayload: r.PeakPayload,
		ArenaBytes:  r.ArenaBytes,
		Utilization: r.Utilization,
		Relocations: r.Relocations,
		ElapsedUS:   r.Elapsed.Microseconds(),
		Stats:       r.AllocStats,
	}
}

func printStats(s *alloc.Stats) {
	printInfo("    alloc %d (list %d, split %d, grow %d)  free %d\n",
		s.AllocCalls, s.AllocFromList, s.AllocFromSplit, s.AllocFromGrow, s.FreeCalls)
	printInfo("    realloc %d (in place %d, shrink %d, top %d, move %d)\n",
		s.ReallocCalls, s.ReallocInPlace, s.ReallocShrink, s.ReallocGrowTop, s.ReallocMove)
	printInfo("    splits %d  merges %d/%d  relocations %d  grow %d calls, %s\n",
		s.SplitCount, s.CoalesceForward, s.CoalesceBackward, s.Relocations, s.GrowCalls, formatBytes(int(s.GrowBytes)))
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/mallockit/internal/config"
	"github.com/joshuapare/mallockit/internal/logger"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	logJSON    bool
	configPath string

	// cfg is loaded before every command runs.
	cfg = config.Default()

	// out groups digits in counts and byte sizes.
	out = message.NewPrinter(language.English)
)

var rootCmd = &cobra.Command{
	Use:   "mallocctl",
	Short: "Replay and inspect dynamic memory allocator traces",
	Long: `mallocctl drives the mallockit allocators through request traces,
validating every returned block (alignment, containment, overlap, data
preservation) and reporting space utilization.

It can also generate random traces and print the size-class table of an
allocator configuration.`,
	Version:      "0.1.0",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and logging")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON lines")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
}

// setup loads the configuration file and initializes logging.
func setup() error {
	c := config.Default()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		c = loaded
	}

	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	logger.Init(logger.Options{
		Enabled: verbose || c.Log.AllocDebug,
		Level:   level,
		JSON:    logJSON || c.Log.JSON,
	})
	cfg = c
	return nil
}

func execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		out.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		out.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// formatBytes renders n with a binary unit.
func formatBytes(n int) string {
	switch {
	case n < 1<<10:
		return out.Sprintf("%d B", n)
	case n < 1<<20:
		return out.Sprintf("%.1f KiB", float64(n)/(1<<10))
	case n < 1<<30:
		return out.Sprintf("%.1f MiB", float64(n)/(1<<20))
	default:
		return out.Sprintf("%.2f GiB", float64(n)/(1<<30))
	}
}

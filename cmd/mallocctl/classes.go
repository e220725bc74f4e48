package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/mallockit/alloc"
)

var (
	classesMinShift   int
	classesNumClasses int
)

func init() {
	cmd := newClassesCmd()
	cmd.Flags().IntVar(&classesMinShift, "min-shift", 0, "log2 of the smallest block (default from config)")
	cmd.Flags().IntVar(&classesNumClasses, "num-classes", 0, "Number of size classes (default from config)")
	rootCmd.AddCommand(cmd)
}

func newClassesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "Print the size-class table",
		Long: `The classes command prints every size class of the bucket allocator:
its block size and the largest request it serves (block size minus the
8-byte header).

Example:
  mallocctl classes
  mallocctl classes --min-shift 4 --num-classes 8
  mallocctl classes --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses()
		},
	}
	return cmd
}

func runClasses() error {
	opts, err := cfg.AllocOptions()
	if err != nil {
		return err
	}
	if classesMinShift > 0 {
		opts.MinBlockShift = classesMinShift
	}
	if classesNumClasses > 0 {
		opts.NumClasses = classesNumClasses
	}

	classes, err := alloc.Classes(opts)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(classes)
	}

	printInfo("%5s %16s %16s\n", "Class", "Block", "Max request")
	for _, c := range classes {
		printInfo("%5d %16d %16d\n", c.Class, c.BlockSize, c.Capacity)
	}
	return nil
}

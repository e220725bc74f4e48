/*
Package mallockit is the high-level entry point for building an allocator over
an arena and replaying request traces against it.

# Quick Start

Replay a trace file with the default bucket allocator:

	res, err := mallockit.RunFiles(ctx, []string{"short1.rep"}, nil)
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Printf("utilization %.2f\n", res[0].Utilization)

# Allocators

  - bucket:  power-of-two size classes with split and same-class coalescing
  - compact: bucket plus relocation of live neighbours before growing
  - bump:    append-only, free is bookkeeping only
  - fixed:   64-byte blocks on a single LIFO list

# Arenas

  - heap: a bounded Go byte slice
  - mmap: an anonymous mapping reserved up front (heap fallback off unix)

# Sessions

A Session owns one arena and one allocator and can replay many traces; each
run resets the arena and re-initializes the allocator:

	s, err := mallockit.Open(&mallockit.Options{Allocator: "compact", Arena: "mmap"})
	if err != nil {
	    log.Fatal(err)
	}
	defer s.Close()

	for _, path := range paths {
	    res, err := s.RunFile(ctx, path)
	    ...
	}

Sessions are NOT thread-safe.
*/
package mallockit

// Package alloc implements heap allocators over a growable arena.
//
// BucketAllocator is the main allocator. Blocks come in power-of-two size
// classes, each starting with an 8-byte header:
//
//	+-------+-------+-----------+-----+-----------------+
//	| class | flags | prevClass | tag | next (uint32 LE) |
//	+-------+-------+-----------+-----+-----------------+
//	0       1       2           3     4                 8
//
// Free blocks are kept in one list per class. The recorded class of the
// preceding block makes both neighbours of any block reachable in O(1), which
// is what lets Free merge a block with a same-class free neighbour on either
// side without scanning.
//
// Requests are served from, in order:
//
//  1. the free list of the exact class
//  2. the smallest larger free block, split down to size
//  3. a fresh block appended at the arena high-water mark
//
// The block ending at the high-water mark ("top") can grow in place, which
// makes Realloc of the most recent allocation cheap.
//
// Compactor, BumpAllocator and FixedAllocator implement the same Allocator
// interface for comparison. Pointers are arena offsets; Null is 0.
//
// Debug logging of growth, splits and merges is enabled with
// MALLOCKIT_LOG_ALLOC=1 or by passing Options.Logger.
package alloc

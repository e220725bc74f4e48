// Command mallocctl replays allocator request traces, generates random traces
// and prints allocator size-class tables.
package main

func main() {
	execute()
}

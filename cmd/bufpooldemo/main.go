// Command bufpooldemo exercises the pooled buffer allocator end to end:
// it builds one chunk, drives the large-path and small-path allocators,
// frees everything back, and prints the resulting usage and buddy-tree
// state. It exists only to give the allocator packages a runnable entry
// point for manual inspection, the way the teacher's cmd/server/main.go
// drives its storage engine.
package main

import (
	"fmt"
	"log"

	"govetachun/bufpool/internal/arena"
	"govetachun/bufpool/internal/chunk"
)

func main() {
	a := arena.New()
	cfg := chunk.DefaultConfig()
	memory := make([]byte, int(cfg.PageSize)<<uint(cfg.MaxOrder))

	c := chunk.New(memory, cfg, a, a, a.Lock())
	log.Printf("bufpooldemo: created chunk of %d bytes (pageSize=%d maxOrder=%d)",
		c.ChunkSize(), cfg.PageSize, cfg.MaxOrder)

	large, ok := c.Allocate(16384, 16384, nil)
	if !ok {
		log.Fatal("bufpooldemo: unexpected allocation failure for a fresh chunk")
	}
	fmt.Printf("allocated large run: %s\n", large.String())

	small := make([]*chunk.Buffer, 0, 4)
	for i := 0; i < 4; i++ {
		buf, ok := c.Allocate(64, 64, nil)
		if !ok {
			log.Fatalf("bufpooldemo: small allocation %d failed unexpectedly", i)
		}
		small = append(small, buf)
		fmt.Printf("allocated small slot: %s\n", buf.String())
	}

	fmt.Printf("usage after allocations: %d%%, freeBytes=%d\n", c.Usage(), c.FreeBytes())

	c.Free(large.Handle, large)
	for _, buf := range small {
		c.Free(buf.Handle, buf)
	}

	fmt.Printf("usage after freeing everything: %d%%, freeBytes=%d\n", c.Usage(), c.FreeBytes())
	fmt.Print(c.DebugString())

	c.Destroy(a)
	log.Printf("bufpooldemo: chunk destroyed=%v", a.IsDestroyed(c))
}

// Package parallel splits independent index ranges across worker goroutines.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Upper bound on concurrently running chunks.
	MinChunkSize int  // Minimum items per chunk to avoid goroutine overhead.
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 16,
	}
}

// Sequential returns a config that always runs on the calling goroutine.
func Sequential() Config {
	return Config{}
}

// Chunks returns the [lo, hi) ranges For would hand to workers for n items.
func (c Config) Chunks(n int) [][2]int {
	if n <= 0 {
		return nil
	}
	if !c.Enabled || c.NumWorkers <= 1 || n < c.MinChunkSize {
		return [][2]int{{0, n}}
	}

	chunk := max((n+c.NumWorkers-1)/c.NumWorkers, c.MinChunkSize, 1)
	out := make([][2]int, 0, (n+chunk-1)/chunk)
	for lo := 0; lo < n; lo += chunk {
		out = append(out, [2]int{lo, min(lo+chunk, n)})
	}
	return out
}

// For calls f on contiguous sub-ranges covering [0, n) and returns once all
// calls finish. Ranges are disjoint, so f may write to per-index slots
// without synchronization. Falls back to a single call on the current
// goroutine when parallelism is disabled or n is small.
func For(n int, cfg Config, f func(lo, hi int)) {
	chunks := cfg.Chunks(n)
	if len(chunks) <= 1 {
		for _, c := range chunks {
			f(c[0], c[1])
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(cfg.NumWorkers)
	for _, c := range chunks {
		c := c
		g.Go(func() error {
			f(c[0], c[1])
			return nil
		})
	}
	_ = g.Wait() // f cannot fail
}

package compute

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minChunk is the smallest range worth handing to another goroutine.
const minChunk = 16

type CPUBackend struct {
	workers int
}

// NewCPUBackend returns a backend with the given number of workers;
// workers <= 0 means runtime.NumCPU().
func NewCPUBackend(workers int) *CPUBackend {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &CPUBackend{workers: workers}
}

func (c *CPUBackend) Name() string {
	if c.workers == 1 {
		return "cpu (serial)"
	}
	return fmt.Sprintf("cpu (%d workers)", c.workers)
}

func (c *CPUBackend) Workers() int { return c.workers }

func (c *CPUBackend) For(n int, fn func(start, end int)) error {
	if n <= 0 {
		return nil
	}
	if c.workers == 1 || n < minChunk {
		fn(0, n)
		return nil
	}

	workers := c.workers
	if n/minChunk < workers {
		workers = n / minChunk
	}
	chunkSize := (n + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		s, e := start, end
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("compute: worker [%d,%d) panicked: %v", s, e, r)
				}
			}()
			fn(s, e)
			return nil
		})
	}
	return g.Wait()
}

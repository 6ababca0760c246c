// Package compute provides the worker backends used by the O(N²) force
// models and by per-particle tree traversal.
//
// A backend splits an index range into contiguous chunks and runs them
// concurrently. Each chunk writes only to its own output rows, so no
// synchronisation beyond the final barrier is needed:
//
//	backend := compute.NewCPUBackend(0) // one worker per CPU
//	err := backend.For(n, func(start, end int) {
//	    for i := start; i < end; i++ {
//	        out[i] = forceOn(i)
//	    }
//	})
//
// Small ranges run inline on the calling goroutine.
package compute

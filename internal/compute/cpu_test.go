package compute

import (
	"sync/atomic"
	"testing"
)

func TestForCoversRangeOnce(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 8} {
		for _, n := range []int{0, 1, 15, 16, 17, 100, 1023} {
			b := NewCPUBackend(workers)
			hits := make([]int32, n)
			err := b.For(n, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
			})
			if err != nil {
				t.Fatalf("workers=%d n=%d: %v", workers, n, err)
			}
			for i, h := range hits {
				if h != 1 {
					t.Fatalf("workers=%d n=%d: index %d visited %d times", workers, n, i, h)
				}
			}
		}
	}
}

func TestForRecoversPanics(t *testing.T) {
	b := NewCPUBackend(4)
	err := b.For(256, func(start, end int) {
		if start == 0 {
			panic("boom")
		}
	})
	if err == nil {
		t.Fatal("expected error from panicking worker")
	}
}

func TestSerialName(t *testing.T) {
	if Serial().Workers() != 1 {
		t.Errorf("serial backend should have one worker")
	}
	if Serial().Name() != "cpu (serial)" {
		t.Errorf("unexpected name %q", Serial().Name())
	}
}

func BenchmarkFor(b *testing.B) {
	backend := Default()
	out := make([]float64, 4096)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = backend.For(len(out), func(start, end int) {
			for j := start; j < end; j++ {
				out[j] = float64(j) * 0.5
			}
		})
	}
}

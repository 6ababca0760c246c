package compute

// Backend runs fn over [0, n) in chunks. For returns only after every chunk
// has finished.
type Backend interface {
	Name() string
	Workers() int
	For(n int, fn func(start, end int)) error
}

// Default returns a CPU backend sized to the machine.
func Default() Backend {
	return NewCPUBackend(0)
}

// Serial returns a backend that runs everything on the calling goroutine.
func Serial() Backend {
	return NewCPUBackend(1)
}

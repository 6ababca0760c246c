// Package analysis characterises the dynamics of a configuration.
//
//   - [Lyapunov]: largest Lyapunov exponent from two nearby trajectories
//   - [PowerSpectrum]: frequency content of a sampled series
//   - [DominantPeriod]: period of the strongest oscillation in a series
//
// # Chaos Detection
//
// A positive largest Lyapunov exponent indicates chaotic dynamics:
//
//	res, err := analysis.Lyapunov(ctx, cfg, initial, 2000, 1e-8, compute.Serial())
//	if err == nil && res.Exponent > 0 {
//	    // nearby initial states diverge exponentially
//	}
package analysis

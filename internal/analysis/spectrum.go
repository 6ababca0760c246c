package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"
)

// PowerSpectrum returns the magnitude of every non-negative frequency of
// series after removing its mean. freq is in cycles per unit time for
// samples dt apart.
func PowerSpectrum(series []float64, dt float64) (freq, power []float64) {
	n := len(series)
	if n < 2 || !(dt > 0) {
		return nil, nil
	}
	mean := stat.Mean(series, nil)
	centred := make([]float64, n)
	for i, x := range series {
		centred[i] = x - mean
	}

	coeff := fft.FFTReal(centred)[:n/2+1]
	freq = make([]float64, len(coeff))
	power = make([]float64, len(coeff))
	for i, c := range coeff {
		freq[i] = float64(i) / (float64(n) * dt)
		power[i] = cmplx.Abs(c)
	}
	return freq, power
}

// DominantPeriod is the period of the strongest non-zero frequency of
// series, or 0 when there is none.
func DominantPeriod(series []float64, dt float64) float64 {
	freq, power := PowerSpectrum(series, dt)
	best := -1
	for i := 1; i < len(power); i++ {
		if best < 0 || power[i] > power[best] {
			best = i
		}
	}
	if best < 0 || power[best] == 0 {
		return 0
	}
	return 1 / freq[best]
}

package exactdiag

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// Statistics are the spin observables of a state.
type Statistics struct {
	Magnetization  float64
	BinderCumulant float64
}

// GetStatistics returns the magnetization per spin and the Binder cumulant of the normalized state vec on n spins.
// Every basis state is counted with the majority of its spins up, so that a symmetric ground state still has a nonzero magnetization.
func GetStatistics(n int, vec []float64) (Statistics, error) {
	if len(vec) != 1<<n {
		return Statistics{}, errors.Errorf("%d %d", len(vec), 1<<n)
	}
	var stats Statistics
	// spinUpBasis is the basis where the majority of spins are up.
	spinUpBasis := make([]int8, n)
	var totalProb, m2 float64
	for i, fullBasis := range bits(n) {
		pickSpinUp(spinUpBasis, fullBasis)
		probability := vec[i] * vec[i]

		var basisM float64
		for _, spin := range spinUpBasis {
			basisM += float64(spin)
		}

		totalProb += probability
		stats.Magnetization += probability * basisM
		stats.BinderCumulant += probability * math.Pow(basisM, 4)
		m2 += probability * math.Pow(basisM, 2)
	}
	if math.Abs(totalProb-1) > 1e-3 {
		return Statistics{}, errors.Errorf("%f", totalProb)
	}

	stats.Magnetization /= float64(n)
	stats.BinderCumulant /= (m2 * m2)
	stats.BinderCumulant = 1 - stats.BinderCumulant/3
	return stats, nil
}

// pickSpinUp sets upState to the spins of state, flipped if needed so that most of them are up.
func pickSpinUp(upState []int8, state []byte) {
	ups := 0
	for _, b := range state {
		if b == 0 {
			ups++
		}
	}

	flip := int8(1)
	if ups < len(state)-ups {
		flip = -1
	}
	for i, b := range state {
		// Bit 0 is the +1 eigenstate of Z.
		switch b {
		case 0:
			upState[i] = flip
		default:
			upState[i] = -flip
		}
	}
}

// indexBit writes the n bits of i into state, site 1 first.
func indexBit(state []byte, n, i int) {
	stateStr := strconv.FormatInt(int64(i), 2)

	state = state[:0]
	// Pad zeros in front.
	for j := 0; j < n-len(stateStr); j++ {
		state = append(state, 0)
	}
	for _, bit := range []byte(stateStr) {
		state = append(state, bit-'0')
	}
}

func bits(n int) func(yield func(int, []byte) bool) {
	state := make([]byte, n)
	return func(yield func(int, []byte) bool) {
		numStates := 1 << n
		for i := range numStates {
			indexBit(state, n, i)
			if !yield(i, state) {
				return
			}
		}
	}
}

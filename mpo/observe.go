package mpo

import (
	"github.com/fumin/mpoalgs/tn"
)

// Algorithm names reported in events.
const (
	AlgorithmMultiply = "multiply"
	AlgorithmExact    = "exact"
	AlgorithmFit      = "fit"
	AlgorithmExpH     = "exph"
	AlgorithmZipUp    = "zipup"
)

// Event describes one truncated decomposition.
type Event struct {
	Algorithm string
	// Sweep is 1-indexed, and zero for single pass algorithms.
	Sweep int
	// Half is "forward" or "backward" for variational sweeps.
	Half string
	Bond int
	// Order is the Taylor series order of ApplyExpH.
	Order    int
	Spectrum tn.Spectrum
}

// Observer receives events from the algorithms of this package.
// It is called synchronously from the running algorithm.
type Observer interface {
	Observe(Event)
}

func (a Args) report(ev Event) {
	if a.observer != nil {
		a.observer.Observe(ev)
	}
	if !a.verbose {
		return
	}
	a.log().Info("decomposition",
		"algorithm", ev.Algorithm,
		"sweep", ev.Sweep,
		"half", ev.Half,
		"bond", ev.Bond,
		"order", ev.Order,
		"truncerr", ev.Spectrum.TruncErr,
		"dim", ev.Spectrum.Dim())
}

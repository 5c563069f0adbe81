package mpo

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/fumin/mpoalgs/mps"
)

// ApplyExpH returns exp(-tau*H)|psi>, approximated by a Taylor series of order Order, see FitApplyExpH.
func ApplyExpH(psi *mps.MPS, h *mps.MPO, tau float64, args Args) (*mps.MPS, error) {
	if err := checkInitialized("psi", psi); err != nil {
		return nil, errors.Wrap(err, "")
	}
	res := psi.Copy()
	if err := FitApplyExpH(psi, h, tau, res, args); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return res, nil
}

// FitApplyExpH sets res to exp(-tau*H)|psi>, starting from res as the guess.
// The series is summed from the highest order down by Horner's rule,
// each step fitting res to |psi> - tau/ord * H|last>, where last is the result of the previous step.
// Successive orders alternate the direction in which they sweep the chain.
func FitApplyExpH(psi *mps.MPS, h *mps.MPO, tau float64, res *mps.MPS, args Args) error {
	if err := checkInitialized("psi", psi, res); err != nil {
		return errors.Wrap(err, "")
	}
	if err := checkInitialized("H", h); err != nil {
		return errors.Wrap(err, "")
	}
	if err := checkLengths(psi, h, res); err != nil {
		return errors.Wrap(err, "")
	}
	if err := checkSites(h, psi); err != nil {
		return errors.Wrap(err, "")
	}
	if err := checkStateSites(psi, res); err != nil {
		return errors.Wrap(err, "")
	}
	if err := checkAliasing(res, psi); err != nil {
		return errors.Wrap(err, "")
	}

	order := get(args.order, defaultOrder)
	sweeps := args.schedule()
	normalize := get(args.normalize, false)
	last := psi.Copy()
	o := up
	for ord := order; ord >= 1; ord-- {
		f := &fitter{
			res: res,
			terms: []term{
				{fac: 1, env: newEnv(psi, nil, res)},
				{fac: -tau / float64(ord), env: newEnv(last, h, res)},
			},
			sweeps:    sweeps,
			normalize: normalize && ord == 1,
			args:      args,
			algorithm: AlgorithmExpH,
			order:     ord,
		}
		if _, err := f.run(o); err != nil {
			return errors.Wrap(err, fmt.Sprintf("order %d", ord))
		}
		last = res.Copy()
		o = orientations[o].next
	}
	return nil
}

package mpo

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/fumin/mpoalgs/mps"
	"github.com/fumin/mpoalgs/tn"
)

// term is one summand fac*op|ket> of a fitting target.
type term struct {
	fac float64
	env *env
}

// orientation selects how a round of sweeps walks the chain.
type orientation int

const (
	up orientation = iota
	down
)

var orientations = map[orientation]struct {
	center int // 1 or N.
	build  func(*env)
	halves [2]half
	next   orientation
}{
	up: {
		center: 1,
		build:  (*env).buildFromRight,
		halves: [2]half{forward, backward},
		next:   down,
	},
	down: {
		center: -1,
		build:  (*env).buildFromLeft,
		halves: [2]half{backward, forward},
		next:   up,
	},
}

// fitter fits res to a sum of terms by two-site variational sweeps.
type fitter struct {
	res       *mps.MPS
	terms     []term
	sweeps    Sweeps
	normalize bool
	args      Args
	algorithm string
	order     int
}

// run performs the sweeps of one orientation and returns the overlap <res|target> after the last one.
func (f *fitter) run(o orientation) (float64, error) {
	ori := orientations[o]
	n := f.res.N()
	if n == 1 {
		return f.single()
	}

	center := ori.center
	if center < 0 {
		center = n
	}
	if err := f.res.Position(center); err != nil {
		return 0, errors.Wrap(err, "")
	}
	for _, t := range f.terms {
		ori.build(t.env)
	}

	lws := make([]*tn.Tensor, len(f.terms))
	rws := make([]*tn.Tensor, len(f.terms))
	for sw, s := range f.sweeps {
		for _, h := range ori.halves {
			for _, b := range h.bonds(n) {
				phi, err := f.target(b, lws, rws)
				if err != nil {
					return 0, errors.Wrap(err, fmt.Sprintf("sweep %d %s bond %d", sw+1, h, b))
				}
				spec, err := f.res.SvdBond(b, phi, h.dir(), s.trunc(b))
				if err != nil {
					return 0, errors.Wrap(err, fmt.Sprintf("sweep %d %s bond %d", sw+1, h, b))
				}
				f.args.report(Event{Algorithm: f.algorithm, Sweep: sw + 1, Half: h.String(), Bond: b, Order: f.order, Spectrum: spec})

				for i, t := range f.terms {
					block := lws[i]
					if h == backward {
						block = rws[i]
					}
					t.env.advance(b, h, block)
				}
			}
		}
	}

	last := ori.halves[1]
	var olp float64
	for _, t := range f.terms {
		olp += t.fac * t.env.overlap(last)
	}
	return olp, nil
}

// target returns the weighted sum of the projected terms at bond b, and records their blocks in lws and rws.
func (f *fitter) target(b int, lws, rws []*tn.Tensor) (*tn.Tensor, error) {
	var phi *tn.Tensor
	for i, t := range f.terms {
		lw, rw, p := t.env.target(b)
		lws[i], rws[i] = lw, rw
		if phi == nil {
			phi = p.Scale(t.fac)
			continue
		}
		var err error
		if phi, err = tn.Add(1, phi, t.fac, p); err != nil {
			return nil, errors.Wrap(err, "")
		}
	}
	if f.normalize {
		norm := phi.Norm()
		if norm == 0 {
			return nil, errors.WithStack(tn.ErrZeroTensor)
		}
		phi = phi.Scale(1 / norm)
	}
	return phi, nil
}

// single fits a chain of one site, which is the target itself.
func (f *fitter) single() (float64, error) {
	ps := make([]*tn.Tensor, 0, len(f.terms))
	var phi *tn.Tensor
	for _, t := range f.terms {
		p := tn.ContractAll(t.env.ket.A(1), t.env.opA(1)).Plain()
		ps = append(ps, p)
		if phi == nil {
			phi = p.Scale(t.fac)
			continue
		}
		var err error
		if phi, err = tn.Add(1, phi, t.fac, p); err != nil {
			return 0, errors.Wrap(err, "")
		}
	}
	if f.normalize {
		norm := phi.Norm()
		if norm == 0 {
			return 0, errors.WithStack(tn.ErrZeroTensor)
		}
		phi = phi.Scale(1 / norm)
	}
	f.res.SetA(1, phi)
	f.res.SetLims(0, 2)

	var olp float64
	for i, t := range f.terms {
		olp += t.fac * tn.Contract(ps[i], phi).Real()
	}
	return olp, nil
}

func checkAliasing(res *mps.MPS, srcs ...*mps.MPS) error {
	for _, s := range srcs {
		if s.ID() == res.ID() {
			return errors.Wrapf(ErrAliased, "%v", res.ID())
		}
	}
	return nil
}

// FitApply sets res to the variational fit of fac*K|psi>, starting from res as the guess.
// If res is uninitialized, the guess is a copy of psi.
// Normalize defaults to true, in which case fac only affects the sign of the result.
func FitApply(fac float64, psi *mps.MPS, k *mps.MPO, res *mps.MPS, args Args) error {
	if err := checkInitialized("psi", psi); err != nil {
		return errors.Wrap(err, "")
	}
	if err := checkInitialized("K", k); err != nil {
		return errors.Wrap(err, "")
	}
	if err := checkLengths(psi, k); err != nil {
		return errors.Wrap(err, "")
	}
	if err := checkSites(k, psi); err != nil {
		return errors.Wrap(err, "")
	}
	if err := checkNotNil("res", res); err != nil {
		return errors.Wrap(err, "")
	}
	if err := checkAliasing(res, psi); err != nil {
		return errors.Wrap(err, "")
	}
	if !res.Initialized() {
		*res = *psi.Copy()
	}
	if err := checkLengths(psi, res); err != nil {
		return errors.Wrap(err, "")
	}
	if err := checkStateSites(psi, res); err != nil {
		return errors.Wrap(err, "")
	}

	f := &fitter{
		res:       res,
		terms:     []term{{fac: fac, env: newEnv(psi, k, res)}},
		sweeps:    args.schedule(),
		normalize: get(args.normalize, true),
		args:      args,
		algorithm: AlgorithmFit,
	}
	if _, err := f.run(up); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// FitApplySum sets res to the variational fit of mpsfac*|psiA> + mpofac*K|psiB>, starting from res as the guess.
// It returns the overlap of the final res with the target.
func FitApplySum(mpsfac float64, psiA *mps.MPS, mpofac float64, psiB *mps.MPS, k *mps.MPO, res *mps.MPS, args Args) (float64, error) {
	if err := checkInitialized("psi", psiA, psiB); err != nil {
		return 0, errors.Wrap(err, "")
	}
	if err := checkInitialized("K", k); err != nil {
		return 0, errors.Wrap(err, "")
	}
	if err := checkInitialized("res", res); err != nil {
		return 0, errors.Wrap(err, "")
	}
	if err := checkLengths(psiA, psiB, k, res); err != nil {
		return 0, errors.Wrap(err, "")
	}
	if err := checkSites(k, psiB); err != nil {
		return 0, errors.Wrap(err, "")
	}
	if err := checkStateSites(psiA, psiB); err != nil {
		return 0, errors.Wrap(err, "")
	}
	if err := checkStateSites(psiA, res); err != nil {
		return 0, errors.Wrap(err, "")
	}
	if err := checkAliasing(res, psiA, psiB); err != nil {
		return 0, errors.Wrap(err, "")
	}

	f := &fitter{
		res: res,
		terms: []term{
			{fac: mpsfac, env: newEnv(psiA, nil, res)},
			{fac: mpofac, env: newEnv(psiB, k, res)},
		},
		sweeps:    args.schedule(),
		normalize: get(args.normalize, false),
		args:      args,
		algorithm: AlgorithmFit,
	}
	olp, err := f.run(up)
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	return olp, nil
}

package mpo

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	gmat "gonum.org/v1/gonum/mat"

	"github.com/fumin/mpoalgs/exactdiag"
	"github.com/fumin/mpoalgs/exactdiag/mat"
	"github.com/fumin/mpoalgs/mps"
	"github.com/fumin/mpoalgs/tn"
)

// operator returns the dense matrix of w, with rows indexing outputs.
func operator(w *mps.MPO) *gmat.Dense {
	d := 1
	for i := 1; i <= w.N(); i++ {
		d *= w.SiteInd(i).Dim()
	}
	return gmat.NewDense(d, d, mps.DenseOperator(w).Data())
}

func denseApply(w *mps.MPO, psi *mps.MPS) []float64 {
	return exactdiag.Apply(operator(w), mps.Dense(psi).Data())
}

func dist(x, y []float64) float64 {
	return floats.Distance(x, y, 2)
}

type recorder struct {
	events []Event
}

func (r *recorder) Observe(ev Event) {
	r.events = append(r.events, ev)
}

func TestMultiply(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n int
	}{
		{n: 1},
		{n: 2},
		{n: 4},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d", test.n), func(t *testing.T) {
			t.Parallel()
			sites := mps.Sites(test.n, 2)
			a := mps.Ising(sites, 0.5)
			b := mps.SumOp(sites, mps.PauliZ)

			ab, err := Multiply(a, b, NewArgs().Cutoff(0))
			require.NoError(t, err)
			require.Equal(t, 1, ab.OrthoCenter())

			var expected gmat.Dense
			expected.Mul(operator(a), operator(b))
			require.True(t, gmat.EqualApprox(operator(ab), &expected, 1e-10), "%v", gmat.Formatted(operator(ab)))
		})
	}
}

func TestMultiplySelf(t *testing.T) {
	t.Parallel()
	sites := mps.Sites(4, 2)
	a := mps.Ising(sites, 1)

	aa, err := Multiply(a, a, NewArgs())
	require.NoError(t, err)

	var expected gmat.Dense
	expected.Mul(operator(a), operator(a))
	require.True(t, gmat.EqualApprox(operator(aa), &expected, 1e-10))
}

func TestMultiplyProjector(t *testing.T) {
	t.Parallel()
	sites := mps.Sites(5, 2)
	p := mps.ParityProjector(sites)

	pp, err := Multiply(p, p, NewArgs().Cutoff(1e-12))
	require.NoError(t, err)
	require.LessOrEqual(t, pp.MaxLinkDim(), 2)

	psi := mps.RandomState(sites, 4, rand.New(rand.NewSource(0)))
	once, err := Apply(p, psi, NewArgs().Cutoff(1e-14))
	require.NoError(t, err)
	twice, err := Apply(pp, psi, NewArgs().Cutoff(1e-14))
	require.NoError(t, err)
	require.Less(t, dist(mps.Dense(once).Data(), mps.Dense(twice).Data()), 1e-8)
}

func TestMultiplyLengthMismatch(t *testing.T) {
	t.Parallel()
	a := mps.Ising(mps.Sites(3, 2), 1)
	b := mps.Ising(mps.Sites(4, 2), 1)
	_, err := Multiply(a, b, NewArgs())
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestExactApply(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n    int
		maxD int
		h    float64
	}{
		{n: 1, maxD: 1, h: 1},
		{n: 2, maxD: 2, h: 0.3},
		{n: 5, maxD: 4, h: 1},
		{n: 6, maxD: 3, h: 2},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d %d %f", test.n, test.maxD, test.h), func(t *testing.T) {
			t.Parallel()
			sites := mps.Sites(test.n, 2)
			psi := mps.RandomState(sites, test.maxD, rand.New(rand.NewSource(int64(test.n))))
			k := mps.Ising(sites, test.h)

			res, err := ExactApply(k, psi, NewArgs().Cutoff(1e-14))
			require.NoError(t, err)
			require.Equal(t, 0, res.LeftLim())
			require.Equal(t, 2, res.RightLim())
			require.Less(t, dist(mps.Dense(res).Data(), denseApply(k, psi)), 1e-8)
		})
	}
}

func TestExactApplyMaxDim(t *testing.T) {
	t.Parallel()
	sites := mps.Sites(6, 2)
	psi := mps.RandomState(sites, 4, rand.New(rand.NewSource(1)))
	k := mps.Ising(sites, 1)

	res, err := ExactApply(k, psi, NewArgs().MaxDim(3))
	require.NoError(t, err)
	require.LessOrEqual(t, res.MaxLinkDim(), 3)
}

func TestFitApply(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n int
	}{
		{n: 1},
		{n: 2},
		{n: 4},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d", test.n), func(t *testing.T) {
			t.Parallel()
			sites := mps.Sites(test.n, 2)
			psi := mps.RandomState(sites, 2, rand.New(rand.NewSource(2)))
			k := mps.Ising(sites, 0.7)

			res := mps.NewMPS(nil)
			err := FitApply(1, psi, k, res, NewArgs().Nsweep(2).Cutoff(1e-14).Normalize(false))
			require.NoError(t, err)
			require.Less(t, dist(mps.Dense(res).Data(), denseApply(k, psi)), 1e-8)
		})
	}
}

func TestFitApplyNormalize(t *testing.T) {
	t.Parallel()
	sites := mps.Sites(4, 2)
	psi := mps.RandomState(sites, 2, rand.New(rand.NewSource(3)))
	k := mps.Ising(sites, 1)

	res := psi.Copy()
	require.NoError(t, FitApply(-2, psi, k, res, NewArgs().Nsweep(2).Cutoff(1e-14)))
	require.InDelta(t, 1, mps.Norm(res), 1e-10)

	expected := denseApply(k, psi)
	floats.Scale(-1/floats.Norm(expected, 2), expected)
	require.Less(t, dist(mps.Dense(res).Data(), expected), 1e-8)
}

func TestApplyMethodsAgree(t *testing.T) {
	t.Parallel()
	sites := mps.Sites(4, 2)
	psi := mps.RandomState(sites, 2, rand.New(rand.NewSource(4)))
	k := mps.Ising(sites, 0.5)
	expected := denseApply(k, psi)

	for _, method := range []string{MethodDensityMatrix, MethodFit} {
		t.Run(method, func(t *testing.T) {
			t.Parallel()
			res, err := Apply(k, psi, NewArgs().Method(method).Cutoff(1e-14).Nsweep(4))
			require.NoError(t, err)
			require.Less(t, dist(mps.Dense(res).Data(), expected), 1e-8)
		})
	}
}

func TestApplyGuess(t *testing.T) {
	t.Parallel()
	sites := mps.Sites(4, 2)
	psi := mps.RandomState(sites, 2, rand.New(rand.NewSource(5)))
	guess := mps.RandomState(sites, 2, rand.New(rand.NewSource(6)))
	k := mps.Ising(sites, 0.5)
	before := mps.Dense(guess).Data()

	res, err := ApplyGuess(k, psi, guess, NewArgs().Cutoff(1e-14).Nsweep(3))
	require.NoError(t, err)
	require.Less(t, dist(mps.Dense(res).Data(), denseApply(k, psi)), 1e-8)
	require.Less(t, dist(mps.Dense(guess).Data(), before), 1e-14)

	_, err = ApplyGuess(k, psi, guess, NewArgs().Method(MethodDensityMatrix))
	require.ErrorIs(t, err, ErrGuessUnsupported)
}

func TestApplyIdentity(t *testing.T) {
	t.Parallel()
	sites := mps.Sites(5, 2)
	psi := mps.RandomState(sites, 4, rand.New(rand.NewSource(7)))
	id := mps.Identity(sites)

	for _, method := range []string{MethodDensityMatrix, MethodFit} {
		res, err := Apply(id, psi, NewArgs().Method(method))
		require.NoError(t, err)
		require.Less(t, dist(mps.Dense(res).Data(), mps.Dense(psi).Data()), 1e-8, method)
	}
}

func TestApplyNormalize(t *testing.T) {
	t.Parallel()
	sites := mps.Sites(4, 2)
	psi := mps.RandomState(sites, 2, rand.New(rand.NewSource(8)))
	k := mps.Ising(sites, 1.5)
	norm := floats.Norm(denseApply(k, psi), 2)

	for _, method := range []string{MethodDensityMatrix, MethodFit} {
		res, err := Apply(k, psi, NewArgs().Method(method).Cutoff(1e-14).Nsweep(2).Normalize(true))
		require.NoError(t, err)
		require.InDelta(t, 1, mps.Norm(res), 1e-10, method)

		res, err = Apply(k, psi, NewArgs().Method(method).Cutoff(1e-14).Nsweep(2))
		require.NoError(t, err)
		require.InDelta(t, norm, mps.Norm(res), 1e-8, method)
	}
}

func TestFitMonotonic(t *testing.T) {
	t.Parallel()
	sites := mps.Sites(6, 2)
	psi := mps.RandomState(sites, 2, rand.New(rand.NewSource(9)))
	k := mps.Ising(sites, 1)
	expected := denseApply(k, psi)

	prev := math.Inf(1)
	for nsweep := 1; nsweep <= 4; nsweep++ {
		res := psi.Copy()
		require.NoError(t, FitApply(1, psi, k, res, NewArgs().Nsweep(nsweep).Cutoff(1e-14).Normalize(false)))
		r := dist(mps.Dense(res).Data(), expected)
		require.LessOrEqual(t, r, prev+1e-8, "%d", nsweep)
		prev = r
	}
	require.Less(t, prev, 1e-8)
}

func TestFitApplySweeps(t *testing.T) {
	t.Parallel()
	sites := mps.Sites(4, 2)
	psi := mps.RandomState(sites, 2, rand.New(rand.NewSource(18)))
	k := mps.Ising(sites, 0.8)
	guess := mps.ProductState(sites, []int{0, 0, 0, 0})

	r := &recorder{}
	sw := Sweeps{{Noise: 1e-4}, {Noise: 1e-6}, {}, {}}
	res, err := ApplyGuess(k, psi, guess, NewArgs().Sweeps(sw).Observer(r))
	require.NoError(t, err)
	require.Less(t, dist(mps.Dense(res).Data(), denseApply(k, psi)), 1e-8)
	require.Greater(t, res.MaxLinkDim(), 1)
	require.Equal(t, 1, guess.MaxLinkDim())

	require.Len(t, r.events, len(sw)*2*(len(sites)-1))
	require.Equal(t, len(sw), r.events[len(r.events)-1].Sweep)
}

func TestFitApplyMaxDim(t *testing.T) {
	t.Parallel()
	sites := mps.Sites(6, 2)
	psi := mps.RandomState(sites, 4, rand.New(rand.NewSource(19)))
	k := mps.Ising(sites, 1.3)

	r := &recorder{}
	res := psi.Copy()
	require.NoError(t, FitApply(1, psi, k, res, NewArgs().MaxDim(2).Nsweep(2).Observer(r)))
	require.LessOrEqual(t, res.MaxLinkDim(), 2)
	require.InDelta(t, 1, mps.Norm(res), 1e-8)

	var truncErr float64
	for _, ev := range r.events {
		require.LessOrEqual(t, ev.Spectrum.Dim(), 2)
		truncErr = math.Max(truncErr, ev.Spectrum.TruncErr)
	}
	require.Greater(t, truncErr, 0.)
}

func TestSumOpOnProductState(t *testing.T) {
	t.Parallel()
	sites := mps.Sites(4, 2)
	psi := mps.ProductState(sites, []int{0, 1, 1, 0})
	k := mps.SumOp(sites, mps.PauliX)

	r := &recorder{}
	res, err := Apply(k, psi, NewArgs().Method(MethodDensityMatrix).Cutoff(1e-12).Observer(r))
	require.NoError(t, err)
	require.LessOrEqual(t, res.MaxLinkDim(), 2)
	require.Len(t, r.events, 3)
	for _, ev := range r.events {
		require.Equal(t, AlgorithmExact, ev.Algorithm)
		require.Less(t, ev.Spectrum.TruncErr, 1e-12)
		require.LessOrEqual(t, ev.Spectrum.Dim(), 2)
	}
	require.Less(t, dist(mps.Dense(res).Data(), denseApply(k, psi)), 1e-10)
}

func TestFitApplySum(t *testing.T) {
	t.Parallel()
	sites := mps.Sites(4, 2)
	psiA := mps.RandomState(sites, 2, rand.New(rand.NewSource(10)))
	psiB := mps.RandomState(sites, 2, rand.New(rand.NewSource(11)))
	k := mps.Ising(sites, 1)
	mpsfac, mpofac := 0.5, -0.25

	expected := denseApply(k, psiB)
	floats.Scale(mpofac, expected)
	floats.AddScaled(expected, mpsfac, mps.Dense(psiA).Data())

	res := psiA.Copy()
	olp, err := FitApplySum(mpsfac, psiA, mpofac, psiB, k, res, NewArgs().Nsweep(2).Cutoff(1e-14))
	require.NoError(t, err)
	got := mps.Dense(res).Data()
	require.Less(t, dist(got, expected), 1e-8)
	require.InDelta(t, floats.Dot(got, expected), olp, 1e-8)
}

func TestApplyExpH(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n   int
		tau float64
	}{
		{n: 1, tau: 0.1},
		{n: 4, tau: 0.1},
		{n: 4, tau: 0.05},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d %f", test.n, test.tau), func(t *testing.T) {
			t.Parallel()
			sites := mps.Sites(test.n, 2)
			psi := mps.RandomState(sites, 2, rand.New(rand.NewSource(12)))
			h := mps.Ising(sites, 1)

			r := &recorder{}
			res, err := ApplyExpH(psi, h, test.tau, NewArgs().Nsweep(2).Cutoff(1e-14).Observer(r))
			require.NoError(t, err)

			hm, buf := mat.M([][]float64{{0}}), mat.M([][]float64{{0}})
			exactdiag.TransverseFieldIsing(hm, buf, [2]int{test.n, 1}, 1)
			e, err := exactdiag.Exp(hm, test.tau)
			require.NoError(t, err)
			expected := exactdiag.Apply(e, mps.Dense(psi).Data())
			require.Less(t, dist(mps.Dense(res).Data(), expected), 1e-6)

			if test.n > 1 {
				// Two sweeps of two half-sweeps over n-1 bonds, for each of the 10 orders.
				require.Len(t, r.events, 10*2*2*(test.n-1))
				require.Equal(t, 10, r.events[0].Order)
				require.Equal(t, "forward", r.events[0].Half)
				require.Equal(t, "backward", r.events[2*2*(test.n-1)].Half)
			}
		})
	}
}

func TestZipUpApply(t *testing.T) {
	t.Parallel()
	sites := mps.Sites(5, 2)
	psi := mps.RandomState(sites, 3, rand.New(rand.NewSource(13)))
	k := mps.Ising(sites, 1)

	_, err := ZipUpApply(k, psi, NewArgs())
	require.ErrorIs(t, err, ErrOrthoCenter)

	res, err := ZipUpApply(k, psi, NewArgs().Cutoff(1e-15).AllowArbPosition(true))
	require.NoError(t, err)
	require.Equal(t, 1, res.OrthoCenter())
	require.Less(t, dist(mps.Dense(res).Data(), denseApply(k, psi)), 1e-8)

	require.NoError(t, k.Position(1))
	res, err = ZipUpApply(k, psi, NewArgs().Cutoff(1e-15))
	require.NoError(t, err)
	require.Less(t, dist(mps.Dense(res).Data(), denseApply(k, psi)), 1e-8)

	require.NoError(t, psi.Position(3))
	_, err = ZipUpApply(k, psi, NewArgs())
	require.ErrorIs(t, err, ErrOrthoCenter)
}

func TestPreconditions(t *testing.T) {
	t.Parallel()
	sites := mps.Sites(4, 2)
	psi := mps.RandomState(sites, 2, rand.New(rand.NewSource(14)))
	k := mps.Ising(sites, 1)
	// foreign differs from sites only at site 2.
	foreign := slices.Clone(sites)
	foreign[1] = tn.NewIndex(2, tn.Site, "s=2")

	tests := []struct {
		name string
		f    func() error
		err  error
	}{
		{
			name: "uninitialized state",
			f: func() error {
				_, err := Apply(k, mps.NewMPS(make([]*tn.Tensor, 4)), NewArgs())
				return err
			},
			err: ErrUninitialized,
		},
		{
			name: "uninitialized operator",
			f: func() error {
				_, err := Apply(mps.NewMPO(make([]*tn.Tensor, 4)), psi, NewArgs().Method(MethodFit))
				return err
			},
			err: ErrUninitialized,
		},
		{
			name: "length mismatch",
			f: func() error {
				_, err := Apply(mps.Ising(mps.Sites(3, 2), 1), psi, NewArgs())
				return err
			},
			err: ErrLengthMismatch,
		},
		{
			name: "incompatible sites",
			f: func() error {
				_, err := Apply(mps.Ising(mps.Sites(4, 2), 1), psi, NewArgs())
				return err
			},
			err: ErrIncompatibleSites,
		},
		{
			name: "interior site",
			f: func() error {
				_, err := Apply(mps.Ising(foreign, 1), psi, NewArgs())
				return err
			},
			err: ErrIncompatibleSites,
		},
		{
			name: "interior site fit",
			f: func() error {
				_, err := Apply(mps.Ising(foreign, 1), psi, NewArgs().Method(MethodFit))
				return err
			},
			err: ErrIncompatibleSites,
		},
		{
			name: "guess sites",
			f: func() error {
				_, err := ApplyGuess(k, psi, mps.RandomState(mps.Sites(4, 2), 2, rand.New(rand.NewSource(15))), NewArgs())
				return err
			},
			err: ErrIncompatibleSites,
		},
		{
			name: "sum sites",
			f: func() error {
				_, err := FitApplySum(1, mps.RandomState(foreign, 2, rand.New(rand.NewSource(16))), 1, psi, k, psi.Copy(), NewArgs())
				return err
			},
			err: ErrIncompatibleSites,
		},
		{
			name: "exp result sites",
			f: func() error {
				return FitApplyExpH(psi, k, 0.1, mps.RandomState(foreign, 2, rand.New(rand.NewSource(17))), NewArgs())
			},
			err: ErrIncompatibleSites,
		},
		{
			name: "multiply sites",
			f: func() error {
				_, err := Multiply(k, mps.Ising(foreign, 1), NewArgs())
				return err
			},
			err: ErrIncompatibleSites,
		},
		{
			name: "empty state",
			f: func() error {
				_, err := ZipUpApply(k, mps.NewMPS(nil), NewArgs())
				return err
			},
			err: ErrUninitialized,
		},
		{
			name: "nil state",
			f: func() error {
				_, err := Apply(k, nil, NewArgs())
				return err
			},
			err: ErrUninitialized,
		},
		{
			name: "nil guess",
			f: func() error {
				_, err := ApplyGuess(k, psi, nil, NewArgs())
				return err
			},
			err: ErrUninitialized,
		},
		{
			name: "nil result",
			f: func() error {
				return FitApply(1, psi, k, nil, NewArgs())
			},
			err: ErrUninitialized,
		},
		{
			name: "nil result sum",
			f: func() error {
				_, err := FitApplySum(1, psi, 1, psi, k, nil, NewArgs())
				return err
			},
			err: ErrUninitialized,
		},
		{
			name: "nil exp",
			f: func() error {
				_, err := ApplyExpH(nil, k, 0.1, NewArgs())
				return err
			},
			err: ErrUninitialized,
		},
		{
			name: "aliased",
			f: func() error {
				return FitApply(1, psi, k, psi, NewArgs())
			},
			err: ErrAliased,
		},
		{
			name: "aliased sum",
			f: func() error {
				_, err := FitApplySum(1, psi, 1, psi.Copy(), k, psi, NewArgs())
				return err
			},
			err: ErrAliased,
		},
		{
			name: "unknown method",
			f: func() error {
				_, err := Apply(k, psi, NewArgs().Method("Zip"))
				return err
			},
			err: ErrUnknownMethod,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.ErrorIs(t, test.f(), test.err)
		})
	}
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	m.Run()
}

package mpo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fumin/mpoalgs/tn"
)

func TestArgsDefaults(t *testing.T) {
	t.Parallel()
	a := NewArgs()
	require.Equal(t, tn.Trunc{Cutoff: defaultExactCutoff, MinDim: 1}, a.trunc(defaultExactCutoff))
	require.Equal(t, Sweeps{{Cutoff: defaultFitCutoff, MinDim: 1}}, a.schedule())

	b := a.Cutoff(1e-8).MaxDim(20).Nsweep(3)
	require.Equal(t, tn.Trunc{Cutoff: 1e-8, MaxDim: 20, MinDim: 1}, b.trunc(defaultExactCutoff))
	require.Equal(t, NewSweeps(3, Sweep{Cutoff: 1e-8, MaxDim: 20, MinDim: 1}), b.schedule())

	// Builders return copies.
	require.Nil(t, a.cutoff)
}

func TestArgsSweepsOverride(t *testing.T) {
	t.Parallel()
	sw := Sweeps{{Cutoff: 1e-4, MaxDim: 4}, {Cutoff: 1e-10, MaxDim: 16, Noise: 1e-6}}
	a := NewArgs().Nsweep(5).Cutoff(1).Sweeps(sw)
	require.Equal(t, sw, a.schedule())
}

func TestParseArgs(t *testing.T) {
	t.Parallel()
	a, err := ParseArgs([]byte(`
Cutoff: 1.0e-10
Maxm: 50
Nsweep: 4
Method: Fit
Normalize: true
Order: 6
AllowArbPosition: true
`))
	require.NoError(t, err)
	require.Equal(t, 1e-10, *a.cutoff)
	require.Equal(t, 50, *a.maxDim)
	require.Nil(t, a.minDim)
	require.Equal(t, MethodFit, *a.method)
	require.True(t, *a.normalize)
	require.Equal(t, 6, *a.order)
	require.True(t, a.allowArbPosition)
	require.Equal(t, NewSweeps(4, Sweep{Cutoff: 1e-10, MaxDim: 50, MinDim: 1}), a.schedule())

	a, err = ParseArgs([]byte(`
Sweeps:
  - {Cutoff: 1.0e-6, Maxm: 8}
  - {Cutoff: 1.0e-12, Maxm: 32, Noise: 1.0e-8}
`))
	require.NoError(t, err)
	require.Equal(t, Sweeps{{Cutoff: 1e-6, MaxDim: 8}, {Cutoff: 1e-12, MaxDim: 32, Noise: 1e-8}}, a.schedule())
}

func TestParseArgsInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
	}{
		{name: "method", yaml: "Method: Zip"},
		{name: "cutoff", yaml: "Cutoff: -1"},
		{name: "nsweep", yaml: "Nsweep: -2"},
		{name: "maxm", yaml: "Maxm: -3"},
		{name: "sweep noise", yaml: "Sweeps: [{Noise: -1}]"},
		{name: "syntax", yaml: "Cutoff: [1"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseArgs([]byte(test.yaml))
			require.Error(t, err)
		})
	}
}

type countObserver struct{ n int }

func (c *countObserver) Observe(Event) { c.n++ }

func TestReport(t *testing.T) {
	t.Parallel()
	c := &countObserver{}
	a := NewArgs().Observer(c).Verbose(true)
	a.report(Event{Algorithm: AlgorithmFit, Sweep: 1, Half: forward.String(), Bond: 2})
	NewArgs().report(Event{Algorithm: AlgorithmFit})
	require.Equal(t, 1, c.n)
}

func TestHalfBonds(t *testing.T) {
	t.Parallel()
	require.Equal(t, []int{1, 2, 3}, forward.bonds(4))
	require.Equal(t, []int{3, 2, 1}, backward.bonds(4))
	require.Empty(t, forward.bonds(1))
	require.Equal(t, tn.Fromleft, forward.dir())
	require.Equal(t, tn.Fromright, backward.dir())
}

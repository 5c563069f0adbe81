package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fumin/mpoalgs/mpo"
)

func TestRun(t *testing.T) {
	t.Parallel()
	for _, job := range []string{jobExact, jobFit, jobZipUp, jobMultiply, jobExpH} {
		t.Run(job, func(t *testing.T) {
			t.Parallel()
			cfg := Config{Job: job, L: 4, H: 1, BondDim: 4, Seed: 1}
			stats, err := run(cfg, mpo.NewArgs().Nsweep(2))
			require.NoError(t, err)
			require.Equal(t, cfg, stats.Config)
			require.Less(t, stats.Err, 1e-6)
			require.Positive(t, stats.MaxLinkDim)
		})
	}
}

func TestRunGround(t *testing.T) {
	t.Parallel()
	cfg := Config{Job: jobGround, L: 4, H: 1, BondDim: 4, Seed: 2}
	stats, err := run(cfg, mpo.NewArgs())
	require.NoError(t, err)
	require.Greater(t, stats.Err, -1e-8)
	require.Less(t, stats.Err, 0.5)
	require.LessOrEqual(t, stats.MaxLinkDim, 4)
	require.InDelta(t, 0.5, stats.Magnetization, 0.5)
}

func TestSolveGather(t *testing.T) {
	runDir = t.TempDir()
	cfg := Config{Job: jobExact, L: 3, H: 0.5, BondDim: 2, Seed: 3}
	require.NoError(t, solve(cfg, mpo.NewArgs()))
	// A finished job is skipped.
	require.NoError(t, os.Remove(filepath.Join(cfg.dir(), fnameStatistics)))
	require.NoError(t, solve(cfg, mpo.NewArgs()))
	stats, err := gather(runDir)
	require.NoError(t, err)
	require.Empty(t, stats)

	require.NoError(t, os.Remove(filepath.Join(cfg.dir(), fnameDone)))
	require.NoError(t, solve(cfg, mpo.NewArgs()))
	stats, err = gather(runDir)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	require.Equal(t, cfg, stats[0].Config)
	require.Less(t, stats[0].Err, 1e-8)
}

func TestReadArgs(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "args.yaml")
	require.NoError(t, os.WriteFile(p, []byte("Cutoff: 1.0e-10\nNsweep: 3\n"), 0644))
	_, err := readArgs(p)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(p, []byte("Method: Zip\n"), 0644))
	_, err = readArgs(p)
	require.Error(t, err)

	_, err = readArgs("")
	require.NoError(t, err)
}

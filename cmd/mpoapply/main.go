package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	gmat "gonum.org/v1/gonum/mat"

	"github.com/fumin/mpoalgs/exactdiag"
	"github.com/fumin/mpoalgs/exactdiag/mat"
	"github.com/fumin/mpoalgs/metrics"
	"github.com/fumin/mpoalgs/mpo"
	"github.com/fumin/mpoalgs/mps"
	"github.com/fumin/mpoalgs/util"
)

const (
	fnameDone       = "done.txt"
	fnameStatistics = "statistics.json"

	jobExact    = "exact"
	jobFit      = "fit"
	jobZipUp    = "zipup"
	jobMultiply = "multiply"
	jobExpH     = "exph"
	jobGround   = "ground"

	tau         = 0.1
	groundSteps = 40
)

var (
	runDir     string
	configPath string
	numJobs    int
	verbose    bool

	rootCmd = &cobra.Command{
		Use:   "mpoapply",
		Short: "Applies transverse field Ising operators to matrix product states and checks them against exact diagonalization",
		Long: `mpoapply runs a grid of jobs over chain lengths, transverse fields and bond dimensions.
Each job applies, multiplies or exponentiates the Ising Hamiltonian, and records its error against
the dense result. Finished jobs are skipped on the next run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mainWithErr(cmd.Context())
		},
	}
)

func init() {
	rootCmd.Flags().StringVarP(&runDir, "dir", "d", filepath.Join("runs", "mpoapply"), "run directory")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML file with algorithm options, such as Cutoff, Maxm and Nsweep")
	rootCmd.Flags().IntVarP(&numJobs, "jobs", "j", runtime.NumCPU(), "number of concurrent jobs")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every decomposition")
}

// Config identifies a job.
type Config struct {
	Job     string
	L       int
	H       float64
	BondDim int
	Seed    int64
}

func (c Config) dir() string {
	return filepath.Join(runDir, fmt.Sprintf("%s_%d_%f_%d", c.Job, c.L, c.H, c.BondDim))
}

func newConfigs() []Config {
	hLogs := []float64{-1, -0.5, 0, 0.5, 1}
	configs := make([]Config, 0)
	for _, job := range []string{jobExact, jobFit, jobZipUp, jobMultiply, jobExpH, jobGround} {
		for _, l := range []int{6, 10} {
			for _, hl := range hLogs {
				for _, bondDim := range []int{2, 4, 8} {
					h := math.Pow(10, hl)
					configs = append(configs, Config{Job: job, L: l, H: h, BondDim: bondDim, Seed: int64(len(configs))})
				}
			}
		}
	}
	return configs
}

// Statistics is the outcome of a job.
type Statistics struct {
	Config
	// Err is the distance to the dense result, or the energy above the ground state for ground jobs.
	Err        float64
	MaxLinkDim int
	exactdiag.Statistics
	Elapsed time.Duration
}

func dist(x, y []float64) float64 {
	return floats.Distance(x, y, 2)
}

// solve runs cfg, unless a previous run already finished it.
func solve(cfg Config, args mpo.Args) error {
	dir := cfg.dir()
	donePath := filepath.Join(dir, fnameDone)
	if _, err := os.Stat(donePath); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	start := time.Now()
	stats, err := run(cfg, args)
	if err != nil {
		return errors.Wrap(err, "")
	}
	stats.Elapsed = time.Since(start)

	b, err := json.Marshal(stats)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.WriteFile(filepath.Join(dir, fnameStatistics), b, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.WriteFile(donePath, nil, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func run(cfg Config, args mpo.Args) (Statistics, error) {
	stats := Statistics{Config: cfg}
	rng := rand.New(rand.NewSource(cfg.Seed))
	sites := mps.Sites(cfg.L, 2)
	h := mps.Ising(sites, cfg.H)
	psi := mps.RandomState(sites, cfg.BondDim, rng)

	hm, buf := mat.M([][]float64{{0}}), mat.M([][]float64{{0}})
	exactdiag.TransverseFieldIsing(hm, buf, [2]int{cfg.L, 1}, cfg.H)
	dense := hm.Dense()

	var res *mps.MPS
	var err error
	switch cfg.Job {
	case jobExact:
		res, err = mpo.Apply(h, psi, args.Method(mpo.MethodDensityMatrix))
	case jobFit:
		res, err = mpo.Apply(h, psi, args.Method(mpo.MethodFit))
	case jobZipUp:
		res, err = mpo.ZipUpApply(h, psi, args.AllowArbPosition(true))
	case jobMultiply:
		h2, err := mpo.Multiply(h, h, args)
		if err != nil {
			return Statistics{}, errors.Wrap(err, "")
		}
		var expected gmat.Dense
		expected.Mul(dense, dense)
		stats.Err = dist(mps.DenseOperator(h2).Data(), expected.RawMatrix().Data)
		stats.MaxLinkDim = h2.MaxLinkDim()
		return stats, nil
	case jobExpH:
		res, err = mpo.ApplyExpH(psi, h, tau, args)
		if err != nil {
			return Statistics{}, errors.Wrap(err, "")
		}
		e, err := exactdiag.Exp(hm, tau)
		if err != nil {
			return Statistics{}, errors.Wrap(err, "")
		}
		stats.Err = dist(mps.Dense(res).Data(), exactdiag.Apply(e, mps.Dense(psi).Data()))
		stats.MaxLinkDim = res.MaxLinkDim()
		return stats, nil
	case jobGround:
		return ground(stats, h, hm, psi, args)
	default:
		return Statistics{}, errors.Errorf("unknown job %q", cfg.Job)
	}
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	stats.Err = dist(mps.Dense(res).Data(), exactdiag.Apply(dense, mps.Dense(psi).Data()))
	stats.MaxLinkDim = res.MaxLinkDim()
	return stats, nil
}

// ground evolves psi in imaginary time with bond dimension BondDim, and compares it with the exact ground state.
func ground(stats Statistics, h *mps.MPO, hm *mat.COO, psi *mps.MPS, args mpo.Args) (Statistics, error) {
	args = args.Normalize(true).MaxDim(stats.BondDim)
	for i := range groundSteps {
		var err error
		if psi, err = mpo.ApplyExpH(psi, h, tau, args); err != nil {
			return Statistics{}, errors.Wrap(err, fmt.Sprintf("step %d", i))
		}
	}

	vvs, err := hm.Eigen()
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	energy := mps.Expectation(psi, h, psi) / mps.InnerProduct(psi, psi)
	stats.Err = energy - vvs[0].Val
	stats.MaxLinkDim = psi.MaxLinkDim()
	vec := mps.Dense(psi).Data()
	floats.Scale(1/floats.Norm(vec, 2), vec)
	if stats.Statistics, err = exactdiag.GetStatistics(stats.L, vec); err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}
	return stats, nil
}

func gather(dir string) ([]Statistics, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*", fnameStatistics))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	stats := make([]Statistics, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		var s Statistics
		if err := json.Unmarshal(b, &s); err != nil {
			return nil, errors.Wrap(err, p)
		}
		stats = append(stats, s)
	}
	slices.SortFunc(stats, func(a, b Statistics) int {
		return strings.Compare(a.dir(), b.dir())
	})
	return stats, nil
}

func readArgs(path string) (mpo.Args, error) {
	if path == "" {
		return mpo.NewArgs(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return mpo.Args{}, errors.Wrap(err, "")
	}
	args, err := mpo.ParseArgs(b)
	if err != nil {
		return mpo.Args{}, errors.Wrap(err, path)
	}
	return args, nil
}

func main() {
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr(ctx context.Context) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := os.MkdirAll(runDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}
	args, err := readArgs(configPath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	reg := prometheus.NewRegistry()
	args = args.Logger(logger).Observer(metrics.New(reg))
	if verbose {
		args = args.Verbose(true)
	}

	configs := newConfigs()
	progress := util.NewSkipThrottler(5 * time.Second)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(numJobs)
	for i, c := range configs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := solve(c, args); err != nil {
				return errors.Wrap(err, fmt.Sprintf("%#v", c))
			}
			if progress.Ok() {
				logger.Info("progress", "job", i+1, "total", len(configs), "config", c.dir())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "")
	}

	// Gather results and print them.
	stats, err := gather(runDir)
	if err != nil {
		return errors.Wrap(err, "")
	}
	fmt.Printf("job,l,h,bonddim,err,maxlinkdim,m,binder,seconds\n")
	for _, s := range stats {
		fmt.Printf("%s,%d,%f,%d,%g,%d,%f,%f,%f\n", s.Job, s.L, s.H, s.BondDim, s.Err, s.MaxLinkDim, s.Magnetization, s.BinderCumulant, s.Elapsed.Seconds())
	}

	mfs, err := reg.Gather()
	if err != nil {
		return errors.Wrap(err, "")
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				logger.Info(mf.GetName(), "labels", labels, "value", m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				logger.Info(mf.GetName(), "labels", labels, "value", m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				logger.Info(mf.GetName(), "labels", labels, "count", h.GetSampleCount(), "mean", h.GetSampleSum()/float64(h.GetSampleCount()))
			}
		}
	}
	return nil
}

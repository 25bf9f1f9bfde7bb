//go:build !nogpu

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/guidedfilter"
	"github.com/gogpu/guidedfilter/bench"
	"github.com/gogpu/guidedfilter/gpu"
	"github.com/gogpu/guidedfilter/internal/satcompute"
)

// NewBenchCmd creates the bench cobra command.
func NewBenchCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark the CPU and GPU filter paths",
		Long: "Times the filter operations over synthetic input, on the CPU reference\n" +
			"kernels and on the GPU pipelines, and records the results in the benchmark\n" +
			"database. GPU runs of the guided operations additionally record per-stage\n" +
			"pipeline timings for the report command.",
		RunE: func(cmd *cobra.Command, args []string) error {
			width, _ := cmd.Flags().GetInt("width")
			height, _ := cmd.Flags().GetInt("height")
			radius, _ := cmd.Flags().GetInt("radius")
			eps, _ := cmd.Flags().GetFloat32("eps")
			iters, _ := cmd.Flags().GetInt("iters")
			ops, _ := cmd.Flags().GetString("ops")
			backends, _ := cmd.Flags().GetString("backends")
			dbPath, _ := cmd.Flags().GetString("db")
			profile, _ := cmd.Flags().GetBool("profile")

			cfg := guidedfilter.DefaultConfig(width, height)
			cfg.Radius = radius
			cfg.Eps = eps
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runBench(ctx, cfg, iters, strings.Split(ops, ","), strings.Split(backends, ","), dbPath, profile)
		},
	}

	pf := cmd.Flags()
	pf.Int("width", 640, "plane width, a multiple of 16")
	pf.Int("height", 480, "plane height, a multiple of 16")
	pf.IntP("radius", "r", 4, "smoothing window radius")
	pf.Float32("eps", 0.01, "variance regularization")
	pf.IntP("iters", "n", 10, "timed iterations per measurement")
	pf.String("ops", "self,cross,rgb,box", "operations to measure, comma separated")
	pf.String("backends", "cpu,gpu", "backends to measure, comma separated")
	pf.String("db", "gfbench.db", "benchmark history database")
	pf.Bool("profile", true, "record per-stage GPU timings")
	return cmd
}

func runBench(ctx context.Context, cfg guidedfilter.Config, iters int, ops, backends []string, dbPath string, profile bool) error {
	store, err := bench.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	in := makeBenchInput(cfg)
	acc := guidedfilter.Accelerator()

	for _, op := range ops {
		op = strings.TrimSpace(op)
		for _, backend := range backends {
			if err := ctx.Err(); err != nil {
				return err
			}
			backend = strings.TrimSpace(backend)

			var fn func() error
			switch backend {
			case "cpu":
				fn = in.cpuFn(op)
			case "gpu":
				if acc == nil {
					slog.WarnContext(ctx, "no GPU accelerator registered, skipping", "op", op)
					continue
				}
				fn = in.gpuFn(acc, op)
			default:
				return fmt.Errorf("unknown backend %q", backend)
			}
			if fn == nil {
				return fmt.Errorf("unknown operation %q", op)
			}

			// One untimed pass warms the pipeline caches and proves the
			// backend can run this operation at all.
			if err := fn(); err != nil {
				slog.WarnContext(ctx, "backend unavailable, skipping",
					"op", op, "backend", backend, "error", err)
				continue
			}

			tm, err := bench.Measure(iters, fn)
			if err != nil {
				return fmt.Errorf("%s/%s: %w", op, backend, err)
			}

			res := bench.Result{
				Op:      op,
				Backend: backend,
				Width:   cfg.Width,
				Height:  cfg.Height,
				Radius:  cfg.Radius,
				Iters:   tm.Iters,
				Min:     tm.Min,
				Mean:    tm.Mean,
				Max:     tm.Max,
			}
			if err := store.InsertResult(&res); err != nil {
				return err
			}
			fmt.Printf("%-5s %-3s  %s\n", op, backend, tm)

			if backend != "gpu" || !profile {
				continue
			}
			stages, err := in.profileStages(op)
			if err != nil {
				slog.WarnContext(ctx, "stage profiling failed", "op", op, "error", err)
				continue
			}
			if len(stages) == 0 {
				continue
			}
			if err := store.InsertStages(res.ID, stages); err != nil {
				return err
			}
		}
	}
	slog.InfoContext(ctx, "benchmark results recorded", "db", dbPath)
	return nil
}

// benchInput is the shared synthetic input of one bench invocation. All
// closures reuse its buffers, so a measurement times the kernels and not the
// allocator.
type benchInput struct {
	cfg   guidedfilter.Config
	p     []float32
	guide []float32
	rgb   []float32
	q     []float32
	qRGB  []float32
}

func makeBenchInput(cfg guidedfilter.Config) *benchInput {
	pixels := cfg.Width * cfg.Height
	rng := rand.New(rand.NewSource(1))
	in := &benchInput{
		cfg:   cfg,
		p:     make([]float32, pixels),
		guide: make([]float32, pixels),
		rgb:   make([]float32, 3*pixels),
		q:     make([]float32, pixels),
		qRGB:  make([]float32, 3*pixels),
	}
	for i := range in.p {
		in.p[i] = rng.Float32()
		in.guide[i] = rng.Float32()
	}
	for i := range in.rgb {
		in.rgb[i] = rng.Float32()
	}
	return in
}

// cpuFn returns the CPU reference closure for op, or nil for an unknown op.
func (in *benchInput) cpuFn(op string) func() error {
	cfg := in.cfg
	par := satcompute.GuidedParams{
		Radius:        cfg.Radius,
		Eps:           cfg.Eps,
		OutputScaling: cfg.OutputScaling,
		ZeroOut:       cfg.ZeroOut,
	}
	switch op {
	case "self":
		return func() error {
			satcompute.SelfGuided(in.q, in.p, cfg.Width, cfg.Height, par)
			return nil
		}
	case "cross":
		return func() error {
			satcompute.CrossGuided(in.q, in.guide, in.p, cfg.Width, cfg.Height, par)
			return nil
		}
	case "rgb":
		pixels := cfg.Width * cfg.Height
		planes := make([]float32, 4*pixels)
		rp := planes[:pixels]
		gp := planes[pixels : 2*pixels]
		bp := planes[2*pixels : 3*pixels]
		q := planes[3*pixels:]
		return func() error {
			satcompute.SeparateRGB(rp, gp, bp, in.rgb, pixels)
			satcompute.SelfGuided(q, rp, cfg.Width, cfg.Height, par)
			copy(rp, q)
			satcompute.SelfGuided(q, gp, cfg.Width, cfg.Height, par)
			copy(gp, q)
			satcompute.SelfGuided(q, bp, cfg.Width, cfg.Height, par)
			satcompute.CombineRGB(in.qRGB, rp, gp, q, pixels)
			return nil
		}
	case "box":
		return func() error {
			satcompute.BoxFilter(in.q, in.p, cfg.Width, cfg.Height, cfg.Radius)
			return nil
		}
	}
	return nil
}

// gpuFn returns the accelerator closure for op, or nil for an unknown op.
func (in *benchInput) gpuFn(a guidedfilter.GPUAccelerator, op string) func() error {
	cfg := in.cfg
	switch op {
	case "self":
		return func() error { return a.SelfGuided(in.q, in.p, cfg) }
	case "cross":
		return func() error { return a.CrossGuided(in.q, in.guide, in.p, cfg) }
	case "rgb":
		return func() error { return a.FilterRGB(in.qRGB, in.rgb, cfg) }
	case "box":
		return func() error { return a.BoxFilter(in.q, in.p, cfg.Width, cfg.Height, cfg.Radius) }
	}
	return nil
}

// profileStages records per-segment GPU timings for the operations that run
// as a pipeline graph. The box filter is a single dispatch and has none.
func (in *benchInput) profileStages(op string) ([]bench.Stage, error) {
	var (
		ts  []gpu.StageTiming
		err error
	)
	switch op {
	case "self":
		ts, err = gpu.ProfileSelfGuided(in.q, in.p, in.cfg)
	case "cross":
		ts, err = gpu.ProfileCrossGuided(in.q, in.guide, in.p, in.cfg)
	case "rgb":
		ts, err = gpu.ProfileRGB(in.qRGB, in.rgb, in.cfg)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	stages := make([]bench.Stage, len(ts))
	for i, t := range ts {
		stages[i] = bench.Stage{
			Seq:     i,
			Lane:    t.Lane,
			Passes:  strings.Join(t.Stages, ","),
			Elapsed: t.Elapsed,
		}
	}
	return stages, nil
}

//go:build !nogpu

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/guidedfilter/bench"
)

// NewReportCmd creates the report cobra command.
func NewReportCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render an HTML report of recorded benchmarks",
		Long: "Renders the benchmark history as an HTML page of charts: mean latency per\n" +
			"operation and backend, and the latency timeline. With --run it renders the\n" +
			"per-stage timing chart of one profiled GPU run instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			out, _ := cmd.Flags().GetString("out")
			op, _ := cmd.Flags().GetString("op")
			run, _ := cmd.Flags().GetString("run")
			limit, _ := cmd.Flags().GetInt("limit")
			return runReport(ctx, dbPath, out, op, run, limit)
		},
	}

	pf := cmd.Flags()
	pf.String("db", "gfbench.db", "benchmark history database")
	pf.StringP("out", "o", "gfbench.html", "output HTML path")
	pf.String("op", "", "restrict the report to one operation")
	pf.String("run", "", "render per-stage timings for this run id, or 'last'")
	pf.Int("limit", 0, "cap the number of runs (0 = all)")
	return cmd
}

func runReport(ctx context.Context, dbPath, outPath, op, run string, limit int) error {
	store, err := bench.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if run != "" {
		return writeStageReport(ctx, store, run, outPath)
	}

	results, err := store.Results(op, limit)
	if err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := bench.WriteReport(f, results); err != nil {
		return err
	}
	slog.InfoContext(ctx, "report written", "path", outPath, "runs", len(results))
	return nil
}

// writeStageReport renders the stage chart of one profiled run. run may be a
// run id or "last" for the newest run with recorded stages.
func writeStageReport(ctx context.Context, store *bench.Store, run, outPath string) error {
	results, err := store.Results("", 0)
	if err != nil {
		return err
	}

	for _, r := range results {
		if run != "last" && r.ID != run {
			continue
		}
		stages, err := store.Stages(r.ID)
		if err != nil {
			return err
		}
		if len(stages) == 0 {
			if run == "last" {
				continue
			}
			return fmt.Errorf("run %s has no recorded stages", run)
		}

		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := bench.WriteStageReport(f, r, stages); err != nil {
			return err
		}
		slog.InfoContext(ctx, "stage report written", "path", outPath, "run", r.ID, "stages", len(stages))
		return nil
	}
	if run == "last" {
		return fmt.Errorf("no runs with recorded stages")
	}
	return fmt.Errorf("run %q not found", run)
}

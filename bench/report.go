// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bench

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteReport renders the benchmark history as a self-contained HTML
// page: mean latency per operation and backend, and a latency timeline
// across runs.
func WriteReport(w io.Writer, results []Result) error {
	if len(results) == 0 {
		return fmt.Errorf("bench: no results to report")
	}

	page := components.NewPage()
	page.AddCharts(latencyBar(results), latencyTimeline(results))
	return page.Render(w)
}

// WriteStageReport renders the profiled pipeline segments of one run as a
// bar chart in submission order.
func WriteStageReport(w io.Writer, run Result, stages []Stage) error {
	if len(stages) == 0 {
		return fmt.Errorf("bench: run %s has no profiled stages", run.ID)
	}

	x := make([]string, len(stages))
	y := make([]opts.BarData, len(stages))
	for i, st := range stages {
		x[i] = fmt.Sprintf("lane %d: %s", st.Lane, st.Passes)
		y[i] = opts.BarData{Value: millis(st.Elapsed)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "guidedfilter stages", Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Pipeline segments (ms)",
			Subtitle: fmt.Sprintf("%s/%s %dx%d r=%d  %s", run.Op, run.Backend, run.Width, run.Height, run.Radius, run.Started.Format(time.RFC3339)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("elapsed", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(bar)
	return page.Render(w)
}

// latencyBar charts the mean latency of every operation, one series per
// backend, averaged over the recorded runs.
func latencyBar(results []Result) *charts.Bar {
	ops := operations(results)

	series := map[string][]opts.BarData{}
	for _, backend := range []string{"cpu", "gpu"} {
		data := make([]opts.BarData, len(ops))
		for i, op := range ops {
			var total time.Duration
			var n int
			for _, r := range results {
				if r.Op == op && r.Backend == backend {
					total += r.Mean
					n++
				}
			}
			if n == 0 {
				data[i] = opts.BarData{}
				continue
			}
			data[i] = opts.BarData{Value: millis(total / time.Duration(n))}
		}
		series[backend] = data
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "guidedfilter bench", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Mean latency by operation (ms)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(ops)
	for _, backend := range []string{"cpu", "gpu"} {
		bar.AddSeries(backend, series[backend])
	}
	return bar
}

// latencyTimeline charts mean latency over time, one series per
// operation and backend. Runs missing from a series leave gaps.
func latencyTimeline(results []Result) *charts.Line {
	sorted := append([]Result(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Started.Before(sorted[j].Started) })

	x := make([]string, len(sorted))
	for i, r := range sorted {
		x[i] = r.Started.Format("01-02 15:04:05")
	}

	keys := []string{}
	seen := map[string]bool{}
	for _, r := range sorted {
		k := r.Op + "/" + r.Backend
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Latency history (ms)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x)
	for _, k := range keys {
		data := make([]opts.LineData, len(sorted))
		for i, r := range sorted {
			if r.Op+"/"+r.Backend == k {
				data[i] = opts.LineData{Value: millis(r.Mean)}
			} else {
				data[i] = opts.LineData{Value: nil}
			}
		}
		line.AddSeries(k, data)
	}
	return line
}

// operations returns the distinct operation names, sorted.
func operations(results []Result) []string {
	seen := map[string]bool{}
	ops := []string{}
	for _, r := range results {
		if !seen[r.Op] {
			seen[r.Op] = true
			ops = append(ops, r.Op)
		}
	}
	sort.Strings(ops)
	return ops
}

// millis rounds a duration to milliseconds with microsecond precision,
// the unit the charts plot.
func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

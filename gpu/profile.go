//go:build !nogpu

package gpu

import (
	"time"

	"github.com/gogpu/guidedfilter"
	"github.com/gogpu/guidedfilter/internal/compute"
)

// StageTiming reports the wall time of one scheduled segment of a device
// pipeline, in submission order. A segment groups consecutive passes on
// one of the two queue lanes between synchronization points.
type StageTiming struct {
	// Lane is the queue lane the segment ran on (0 or 1).
	Lane int

	// Stages lists the pipeline passes recorded into the segment.
	Stages []string

	// Elapsed covers encoding, submission and the wait for completion.
	Elapsed time.Duration
}

// ProfileSelfGuided filters p like the registered accelerator would and
// returns per-segment wall timings along with the result in q. Profiled
// runs wait out each segment, so the timings describe stage cost rather
// than overlapped end-to-end time. Returns ErrFallbackToCPU when no
// device is available.
func ProfileSelfGuided(q, p []float32, cfg guidedfilter.Config) ([]StageTiming, error) {
	ts, err := accelerator.ProfileSelfGuided(q, p, cfg)
	return convertTimings(ts), err
}

// ProfileCrossGuided is ProfileSelfGuided for the cross-guided filter.
func ProfileCrossGuided(q, guide, p []float32, cfg guidedfilter.Config) ([]StageTiming, error) {
	ts, err := accelerator.ProfileCrossGuided(q, guide, p, cfg)
	return convertTimings(ts), err
}

// ProfileRGB is ProfileSelfGuided for the fused three-channel filter.
// dst and src are interleaved RGB.
func ProfileRGB(dst, src []float32, cfg guidedfilter.Config) ([]StageTiming, error) {
	ts, err := accelerator.ProfileRGB(dst, src, cfg)
	return convertTimings(ts), err
}

func convertTimings(ts []compute.SegmentTiming) []StageTiming {
	if ts == nil {
		return nil
	}
	out := make([]StageTiming, len(ts))
	for i, t := range ts {
		out[i] = StageTiming{Lane: t.Lane, Stages: t.Nodes, Elapsed: t.Elapsed}
	}
	return out
}

// Package guidedfilter provides a GPU-accelerated guided image filter for Go.
//
// # Overview
//
// guidedfilter implements the edge-preserving guided filter of He et al. on
// top of the GoGPU ecosystem. The filter smooths an image while keeping the
// edges of a guide image intact, which makes it a fast alternative to the
// bilateral filter for denoising, detail enhancement and depth map
// refinement. All heavy stages (prefix scans, summed-area tables, box
// filters) run as compute kernels when a GPU backend is enabled, with a pure
// Go path used otherwise.
//
// # Quick Start
//
//	import (
//	    gf "github.com/gogpu/guidedfilter"
//	    _ "github.com/gogpu/guidedfilter/gpu" // optional GPU acceleration
//	)
//
//	cfg := gf.DefaultConfig(640, 480)
//	cfg.Radius = 7
//	cfg.Eps = 0.01
//
//	f, err := gf.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out := gf.NewPlane(640, 480)
//	if err := f.Apply(out, in); err != nil {
//	    log.Fatal(err)
//	}
//
// # Variants
//
// Filter.Apply runs the self-guided form (the input is its own guide);
// Filter.ApplyGuided smooths one plane under the structure of another.
// RGBFilter applies the filter per channel of an interleaved color image and
// DepthFilter refines raw 16-bit depth maps, optionally back-projecting them
// into point clouds.
//
// # Architecture
//
// The library is organized into:
//   - Public API: Config, Plane, Filter, RGBFilter, DepthFilter, metrics
//   - Internal: satcompute (CPU kernels), compute (wgpu-hal engine)
//   - Opt-in acceleration: guidedfilter/gpu registers the engine on import
//
// # Dimensions
//
// Plane dimensions must be multiples of 16 so that every kernel's dispatch
// grid divides evenly; Config.Validate reports violations eagerly.
package guidedfilter

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)

//go:build !nogpu

// Command gfctl drives the guided image filter from the command line:
// one-shot image smoothing and depth map refinement, latency benchmarks
// over the CPU and GPU paths, and HTML reports over the recorded history.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gogpu/guidedfilter/cmd/gfctl/cmd"
)

// GitSHA is stamped by the build.
var GitSHA = "NA"

func main() {
	ctx, cnc := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cnc()
	go func() {
		// The first signal cancels the context; releasing the notify
		// restores default handling for a second ctrl-c.
		defer cnc()
		<-ctx.Done()
	}()
	if err := cmd.NewRoot(ctx, GitSHA).Execute(); err != nil {
		os.Exit(1)
	}
}

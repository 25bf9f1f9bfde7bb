//go:build !nogpu

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gogpu/guidedfilter"
)

// NewRoot builds the gfctl command tree.
func NewRoot(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gfctl",
		Short: "guided image filter tooling",
		Long: "gfctl smooths images and refines depth maps with the guided image filter,\n" +
			"benchmarks the CPU and GPU paths, and renders HTML reports over the\n" +
			"recorded benchmark history.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFile, _ := cmd.Flags().GetString("log-file")

			var level slog.Level
			badLevel := level.UnmarshalText([]byte(strings.ToUpper(logLevel))) != nil
			if badLevel {
				level = slog.LevelInfo
			}

			var out io.Writer = os.Stderr
			if logFile != "" {
				out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
					Filename:   logFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
				})
			}
			logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
			guidedfilter.SetLogger(logger)

			if badLevel {
				slog.WarnContext(ctx, "Invalid log level, defaulting to INFO", "level", logLevel)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	cmd.AddCommand(
		NewVersionCmd(ctx, gitsha),
		NewFilterCmd(ctx),
		NewDepthCmd(ctx),
		NewBenchCmd(ctx),
		NewReportCmd(ctx),
	)
	pf := cmd.PersistentFlags()
	pf.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	pf.String("log-file", "", "Also write logs to this file, rotated at 10 MB")
	return cmd
}

// NewVersionCmd reports the git sha this build was stamped with.
func NewVersionCmd(ctx context.Context, gitsha string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "git sha for this build",
		Long:  "git sha for this build",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(gitsha)
		},
	}
}

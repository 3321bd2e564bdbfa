// Command mkframes produces sample input for the viewer's live sources: text
// frame files for a watched directory, or a websocket stream of binary frames.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"specks/core/live"
	"specks/core/services/logger"
)

var (
	orbit   live.OrbitConfig
	perFile int
	outDir  string
	addr    string
	verbose bool

	rootCmd = &cobra.Command{
		Use:           "mkframes",
		Short:         "Generate synthetic speck frames",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	writeCmd = &cobra.Command{
		Use:   "write",
		Short: "Write text frame files into a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := writeFrames(outDir, orbit, perFile)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d files to %s\n", n, outDir)
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Stream binary frames to websocket clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			return serve(ctx, addr, orbit, logger.NewText(os.Stderr, level))
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.IntVar(&orbit.Bodies, "bodies", 500, "Number of orbiting bodies.")
	pf.IntVar(&orbit.Steps, "steps", 120, "Frames to produce (0 streams forever when serving).")
	pf.Float64Var(&orbit.Dt, "dt", 0.05, "Simulated time between frames.")
	pf.Int64Var(&orbit.Seed, "seed", 1, "Random seed.")
	pf.StringVar(&orbit.Label, "label", "", "Label for the first body.")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Debug logging.")

	writeCmd.Flags().StringVarP(&outDir, "out", "o", "frames", "Output directory.")
	writeCmd.Flags().IntVar(&perFile, "per-file", 10, "Frames per file.")
	serveCmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7070", "Listen address.")
	serveCmd.Flags().Float64Var(&orbit.Rate, "rate", 30, "Frames per second per client.")

	rootCmd.AddCommand(writeCmd, serveCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "mkframes:", err)
		os.Exit(2)
	}
}

// pace returns a ticker channel for rate frames per second, or nil.
func pace(rate float64) (<-chan time.Time, func()) {
	if rate <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(time.Duration(float64(time.Second) / rate))
	return t.C, t.Stop
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"specks/app"
	"specks/hal"
	"specks/internal/buildinfo"
	"specks/internal/config"
)

var (
	configPath  string
	headless    bool
	hz          int
	ticks       uint64
	metricsAddr string
	gpu         bool

	rootCmd = &cobra.Command{
		Use:           "specks",
		Short:         "Interactive viewer for animated point clouds",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runViewer,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}
	configInitCmd = &cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration to path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.WriteDefault(args[0])
		},
	}
)

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "YAML configuration file (defaults apply when empty)")
	f.BoolVar(&headless, "headless", false, "Run without a window.")
	f.IntVar(&hz, "hz", 0, "Tick rate; overrides window.hz.")
	f.Uint64Var(&ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run forever).")
	f.BoolVar(&gpu, "gpu", false, "Draw through the GPU instead of the software framebuffer.")
	f.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address.")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(versionCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runViewer(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if hz > 0 {
		cfg.Window.Hz = hz
	}
	if gpu {
		cfg.Window.GPU = true
	}
	if headless {
		cfg.Window.GPU = false
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := hal.Options{Width: cfg.Window.Width, Height: cfg.Window.Height, Log: cmd.ErrOrStderr()}
	newApp := func(h hal.HAL) (hal.App, error) {
		a, err := app.New(ctx, h, cfg)
		if err != nil {
			return nil, err
		}
		return a, nil
	}

	if headless {
		err := hal.RunHeadless(ctx, opts, hal.HeadlessConfig{Hz: cfg.Window.Hz, Ticks: ticks}, newApp)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return hal.RunWindow(opts, cfg.Window.Hz, newApp)
}

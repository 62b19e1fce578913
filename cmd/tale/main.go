package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tattletale/internal/sim/catalogs"
	"tattletale/internal/sim/tuning"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

// app carries the global flags and the logger built from them.
type app struct {
	configDir string
	dataDir   string
	debug     bool

	log *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}
	rootCmd := &cobra.Command{
		Use:   "tale",
		Short: "Tattletale - a deterministic social story simulator",
		Long: `tale simulates a group of students through their course weeks and
free time. Every value change and interaction is recorded with the
reasons that caused it, so the resulting history can be replayed and
explained.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configDir, "configs", "./configs", "Config directory holding tuning.yaml and interactions.json")
	rootCmd.PersistentFlags().StringVar(&a.dataDir, "data", "./data", "Runtime data directory")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Log every turn at debug level")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(a),
		newReplayCmd(a),
		newDescribeCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

func (a *app) initLogger() error {
	config := zap.NewProductionConfig()
	if a.debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	a.log = logger
	return nil
}

func (a *app) tuningPath() string { return filepath.Join(a.configDir, "tuning.yaml") }

// loadInputs reads the setting and the interaction catalog from the config
// directory.
func (a *app) loadInputs() (tuning.Setting, *catalogs.Catalog, error) {
	s, err := tuning.Load(a.tuningPath())
	if err != nil {
		return s, nil, fmt.Errorf("load tuning: %w", err)
	}
	cat, err := catalogs.Load(a.configDir)
	if err != nil {
		return s, nil, fmt.Errorf("load catalogs: %w", err)
	}
	return s, cat, nil
}

// settingFlags are the run overrides shared by run and serve.
type settingFlags struct {
	seed   int64
	days   int
	actors int
}

func (f *settingFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Override the seed from tuning.yaml")
	cmd.Flags().IntVar(&f.days, "days", 0, "Override the number of simulated days")
	cmd.Flags().IntVar(&f.actors, "actors", 0, "Override the number of actors")
}

func (f *settingFlags) apply(cmd *cobra.Command, s *tuning.Setting) error {
	if cmd.Flags().Changed("seed") {
		s.Seed = f.seed
	}
	if cmd.Flags().Changed("days") {
		if f.days < 1 {
			return fmt.Errorf("--days must be at least 1")
		}
		s.Days = f.days
	}
	if cmd.Flags().Changed("actors") {
		s.ActorCount = f.actors
	}
	return s.Validate()
}

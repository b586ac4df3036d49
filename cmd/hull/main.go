// Package main implements the hull CLI: the command dispatcher (§4.7)
// that switches between serving a running app and tool mode (build,
// verify, inspect, manifest, keygen, sign-platform). There is no path
// from a running server back into tool mode — the switch happens here,
// once, before any server or compiler code runs.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hull/internal/logging"
)

var (
	verbose    bool
	workspace  string
	configPath string
	startupTO  time.Duration

	cliLogger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hull",
	Short: "hull - a local-first capability sandbox for scripted apps",
	Long: `hull runs a scripted app inside a capability-and-trust sandbox:
a declared manifest, an OS-level sandbox derived from it, a dual
signature chain over the app bundle, and a choice of two scripting
backends behind one capability surface.

Run without a subcommand to serve the app in the current directory.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		cliLogger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		} else if abs, err := filepath.Abs(ws); err == nil {
			ws = abs
		}
		workspace = ws

		level := logging.LevelInfo
		if verbose {
			level = logging.LevelDebug
		}
		if err := logging.Initialize(ws, verbose, level); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cliLogger != nil {
			_ = cliLogger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "app directory (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "hull.yaml", "host config file")
	rootCmd.PersistentFlags().DurationVar(&startupTO, "startup-timeout", 30*time.Second, "app load + route wiring timeout")

	rootCmd.AddCommand(
		serveCmd,
		buildCmd,
		verifyCmd,
		inspectCmd,
		manifestCmd,
		keygenCmd,
		signPlatformCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Package cli is the arbor command tree: the editor window plus the
// store-only subcommands that never open a display.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/phanxgames/arbor/internal/config"
	"github.com/phanxgames/arbor/store"
)

var version = "0.3.0"

// Terminal styling.
var (
	good   = color.New(color.FgGreen)
	warn   = color.New(color.FgYellow)
	bad    = color.New(color.FgRed)
	subtle = color.New(color.FgHiBlack)
)

// ephemeral switches every command to a throwaway in-memory store.
var ephemeral bool

// loadConfig and openStore are seams so command tests can run against an
// in-memory store instead of a Badger directory on disk.
var (
	loadConfig = config.Load
	openStore  = func(dir string) (*store.TreeStore, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		kv, err := store.OpenBadger(dir)
		if err != nil {
			return nil, err
		}
		return store.NewTreeStore(kv), nil
	}
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "arbor",
		Short:         "arbor — interactive skill tree editor",
		Long:          "Edit a skill tree on an infinite canvas: nodes, objectives, and animated links.\nRunning arbor with no subcommand opens the editor window.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(loadConfig().Debug.Log)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEditor()
		},
	}

	root.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "use a throwaway in-memory store")

	root.AddCommand(
		runCmd(),
		exportCmd(),
		seedCmd(),
		infoCmd(),
	)
	return root
}

// Execute runs the command tree. Errors are printed once, in red.
func Execute() error {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		bad.Fprintf(os.Stderr, "arbor: %v\n", err)
		return err
	}
	return nil
}

// storeFor opens the configured store, or an in-memory one under --ephemeral.
func storeFor(cfg config.Config) (*store.TreeStore, error) {
	if ephemeral {
		return store.NewTreeStore(store.NewMemKV()), nil
	}
	return openStore(cfg.Store.Dir)
}

func setupLogging(level string) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})))
}

// Package main is the entry point for the palhm binary.
//
// Startup sequence:
//  1. Parse CLI flags
//  2. Build logger
//  3. Load and merge the config document
//  4. Build the GlobalContext (execs, tasks, modules, boot-report)
//  5. Dispatch the requested subcommand
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/mods"
	"github.com/qqa112811/palhm/internal/palhmcfg"
	"github.com/qqa112811/palhm/internal/palhmerr"
)

const defaultTaskID = "default"

type cliFlags struct {
	configPath string
	quiet      bool
	verbosity  int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a CLI usage violation (unknown command, -q/-v
// conflict) to exit 2 and everything else to a generic failure (spec
// §6: "Any uncaught internal failure → non-zero").
func exitCodeFor(err error) int {
	if err == errUsage {
		return 2
	}
	return 1
}

var errUsage = fmt.Errorf("usage error")

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:           "palhm",
		Short:         "palhm — pluggable, declarative host backup and maintenance orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "file", "f", palhmcfg.DefaultConfigPath, "config file path")
	root.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "verbosity: errors only")
	root.PersistentFlags().CountVarP(&flags.verbosity, "verbose", "v", "increase verbosity (repeatable)")

	root.AddCommand(newRunCmd(flags))
	root.AddCommand(newConfigCmd(flags))
	root.AddCommand(newModsCmd())
	root.AddCommand(newBootReportCmd(flags))

	// An argument that matched no subcommand is an unknown command; reporting
	// it as errUsage gives it exit 2 rather than cobra's generic error.
	root.Args = func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return errUsage
		}
		return nil
	}
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return errUsage
	}

	return root
}

func newRunCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run [TASK]",
		Short: "run a configured task (default: \"default\")",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := setup(cmd.Context(), flags)
			if err != nil {
				return err
			}

			taskID := defaultTaskID
			if len(args) == 1 {
				taskID = args[0]
			}

			t, ok := ctx.TaskMap[taskID]
			if !ok {
				return fmt.Errorf("%w: unknown task %q", palhmerr.ErrInvalidConfig, taskID)
			}
			return t.Run(ctx)
		},
	}
}

func newConfigCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "load, validate, and print the merged config",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := setup(cmd.Context(), flags)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "nb-workers:\t%d\n", ctx.NBWorkers)
			fmt.Fprintf(tw, "unbounded:\t%t\n", ctx.Unbounded)
			fmt.Fprintf(tw, "vl:\t%d\n", ctx.VL)

			execIDs := sortedKeys(ctx.ExecMap)
			for _, id := range execIDs {
				fmt.Fprintf(tw, "exec:\t%s\n", id)
			}
			taskIDs := sortedKeysTask(ctx.TaskMap)
			for _, id := range taskIDs {
				fmt.Fprintf(tw, "task:\t%s\n", id)
			}
			return tw.Flush()
		},
	}
}

func newModsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mods",
		Short: "list installable extension module names",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := mods.Names()
			sort.Strings(names)
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
}

func newBootReportCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "boot-report",
		Short: "send the configured boot report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := setup(cmd.Context(), flags)
			if err != nil {
				return err
			}
			if ctx.BootReport == nil {
				return fmt.Errorf(`%w: no "boot-report" configured`, palhmerr.ErrInvalidConfig)
			}
			return ctx.BootReport.Send(ctx)
		},
	}
}

// setup validates -q/-v mutual exclusion, builds the logger, loads and
// merges the config document, and builds the GlobalContext (spec §6).
func setup(baseCtx context.Context, flags *cliFlags) (*core.GlobalContext, error) {
	if flags.quiet && flags.verbosity > 0 {
		return nil, errUsage
	}

	logger, err := buildLogger(flags.verbosity)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	doc, err := palhmcfg.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	// runCtx is cancelled on SIGINT/SIGTERM, which propagates to every
	// in-flight Exec (spec §5). cancel is called here only when Build
	// fails; on success it is not returned, so the signal-aware context
	// stays live until the process exits.
	runCtx, cancel := signal.NotifyContext(baseCtx, os.Interrupt, syscall.SIGTERM)

	ctx, err := palhmcfg.Build(runCtx, logger, doc)
	if err != nil {
		cancel()
		return nil, err
	}

	if flags.quiet {
		ctx.VL = -1
	} else if flags.verbosity > 0 {
		ctx.VL = flags.verbosity
	}

	return ctx, nil
}

func buildLogger(verbosity int) (*zap.Logger, error) {
	var cfg zap.Config
	if verbosity > 0 {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	return cfg.Build()
}

func sortedKeys(m map[string]core.Exec) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysTask(m map[string]core.Task) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

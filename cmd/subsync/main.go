package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/subsync/subsync"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// SyncCommander defines the interface for sync operations.
type SyncCommander interface {
	Run(ctx context.Context, submodules []subsync.Submodule, opts subsync.UpdateOptions) (subsync.UpdateRunResult, error)
}

// PlanCommander defines the interface for plan operations.
type PlanCommander interface {
	Run(ctx context.Context, submodules []subsync.Submodule) (subsync.PlanResult, error)
}

// ListCommander defines the interface for list operations.
type ListCommander interface {
	Run(ctx context.Context) (subsync.ListResult, error)
}

type options struct {
	syncCommander      SyncCommander // nil = use default
	planCommander      PlanCommander // nil = use default
	listCommander      ListCommander // nil = use default
	commandIDGenerator func() string // nil = use subsync.GenerateCommandID
}

// Option configures newRootCmd.
type Option func(*options)

// WithSyncCommander sets the SyncCommander instance for testing.
func WithSyncCommander(cmd SyncCommander) Option {
	return func(o *options) {
		o.syncCommander = cmd
	}
}

// WithPlanCommander sets the PlanCommander instance for testing.
func WithPlanCommander(cmd PlanCommander) Option {
	return func(o *options) {
		o.planCommander = cmd
	}
}

// WithListCommander sets the ListCommander instance for testing.
func WithListCommander(cmd ListCommander) Option {
	return func(o *options) {
		o.listCommander = cmd
	}
}

// WithCommandIDGenerator sets the command ID generator for testing.
func WithCommandIDGenerator(gen func() string) Option {
	return func(o *options) {
		o.commandIDGenerator = gen
	}
}

func resolveDirectory(dirFlag, baseCwd string) (string, error) {
	if dirFlag == "" {
		return baseCwd, nil
	}

	var resolved string
	if !filepath.IsAbs(dirFlag) {
		resolved = filepath.Join(baseCwd, dirFlag)
	} else {
		resolved = dirFlag
	}

	resolved, err := filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("cannot change to '%s': %w", dirFlag, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("cannot change to '%s': not a directory", dirFlag)
	}

	return resolved, nil
}

// createLogger creates a logger based on verbosity level.
// Returns a nop logger for verbosity < 2, or a CLI handler logger for -vv.
func createLogger(w io.Writer, verbosity int, idGen func() string) *slog.Logger {
	if verbosity < 2 {
		return subsync.NewNopLogger()
	}
	handler := subsync.NewCLIHandler(w, subsync.VerbosityToLevel(verbosity))
	handlerWithID := handler.WithAttrs([]slog.Attr{
		subsync.LogAttrKeyCmdID.Attr(idGen()),
	})
	return slog.New(handlerWithID)
}

// loadSubmodules parses .gitmodules and applies config plus CLI filters.
func loadSubmodules(ctx context.Context, git *subsync.GitRunner, cfg *subsync.Config, nameFilters []string) ([]subsync.Submodule, error) {
	subs, err := git.Submodules(ctx)
	if err != nil {
		return nil, err
	}
	include := cfg.Include
	if len(nameFilters) > 0 {
		include = nameFilters
	}
	return subsync.FilterSubmodules(subs, include, cfg.Exclude)
}

func newRootCmd(opts ...Option) *cobra.Command {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	idGen := subsync.GenerateCommandID
	if o.commandIDGenerator != nil {
		idGen = o.commandIDGenerator
	}

	var (
		cfg       *subsync.Config
		cwd       string
		dirFlag   string
		colorFlag string
	)

	rootCmd := &cobra.Command{
		Use:           "subsync",
		Short:         "Keep git submodules in sync with sibling checkouts or remote branches",
		Version:       fmt.Sprintf("%s (%s, %s)", version, commit, date),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			originalCwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get current directory: %w", err)
			}

			cwd, err = resolveDirectory(dirFlag, originalCwd)
			if err != nil {
				return err
			}

			subsync.SetColorMode(subsync.ColorMode(colorFlag))

			result, err := subsync.LoadConfig(cwd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			for _, w := range result.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			cfg = result.Config
			return nil
		},
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Update submodules to sibling or remote branch commits",
		Long: `Update each submodule to the commit selected from a local sibling
checkout or the remote branch head, whichever is newer.

A sibling checkout is a directory next to the superproject that tracks
the same upstream as a submodule. When both a sibling commit and a
remote commit exist, ancestry decides; --force-remote always prefers
the remote.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			verbosity, _ := cmd.Flags().GetCount("verbose")
			quiet, _ := cmd.Flags().GetBool("quiet")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			forceRemote, _ := cmd.Flags().GetBool("force-remote")
			sequential, _ := cmd.Flags().GetBool("sequential")
			parallel, _ := cmd.Flags().GetInt("parallel")
			nameFilters, _ := cmd.Flags().GetStringArray("submodule")

			log := createLogger(cmd.ErrOrStderr(), verbosity, idGen)
			git := subsync.NewGitRunner(cwd, subsync.WithLogger(log))

			submodules, err := loadSubmodules(ctx, git, cfg, nameFilters)
			if err != nil {
				return err
			}

			commander := o.syncCommander
			if commander == nil {
				commander = subsync.NewDefaultUpdateCommand(cwd, cfg.DefaultBranch, log)
			}

			if parallel == 0 {
				parallel = cfg.Parallel
			}
			result, err := commander.Run(ctx, submodules, subsync.UpdateOptions{
				DryRun:      dryRun,
				ForceRemote: forceRemote || cfg.ForceRemote,
				Sequential:  sequential,
				Parallel:    parallel,
				SearchDirs:  cfg.SearchDirs,
			})
			if err != nil {
				return err
			}

			formatted := result.Format(subsync.UpdateFormatOptions{
				Verbose: verbosity >= 1,
				Quiet:   quiet,
			})
			if formatted.Stderr != "" {
				fmt.Fprint(cmd.ErrOrStderr(), formatted.Stderr)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatted.Stdout)

			if result.HasFailures() {
				return fmt.Errorf("failed to update %d submodule(s)", result.CountByStatus(subsync.StatusFailed))
			}
			return nil
		},
	}

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the update plan without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			verbosity, _ := cmd.Flags().GetCount("verbose")
			nameFilters, _ := cmd.Flags().GetStringArray("submodule")

			log := createLogger(cmd.ErrOrStderr(), verbosity, idGen)
			git := subsync.NewGitRunner(cwd, subsync.WithLogger(log))

			submodules, err := loadSubmodules(ctx, git, cfg, nameFilters)
			if err != nil {
				return err
			}

			commander := o.planCommander
			if commander == nil {
				commander = subsync.NewDefaultPlanCommand(cwd, cfg.DefaultBranch, log)
			}

			result, err := commander.Run(ctx, submodules)
			if err != nil {
				return err
			}

			formatted := result.Format(subsync.PlanFormatOptions{Verbose: verbosity >= 1})
			fmt.Fprint(cmd.OutOrStdout(), formatted.Stdout)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List configured submodules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			verbosity, _ := cmd.Flags().GetCount("verbose")

			log := createLogger(cmd.ErrOrStderr(), verbosity, idGen)

			commander := o.listCommander
			if commander == nil {
				commander = subsync.NewDefaultListCommand(cwd, log)
			}

			result, err := commander.Run(cmd.Context())
			if err != nil {
				return err
			}

			formatted := result.Format(subsync.ListFormatOptions{Verbose: verbosity >= 1})
			fmt.Fprint(cmd.OutOrStdout(), formatted.Stdout)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&dirFlag, "directory", "C", "", "Run as if subsync was started in <path>")
	rootCmd.PersistentFlags().CountP("verbose", "v", "Enable verbose output (-v for verbose, -vv for debug)")
	rootCmd.PersistentFlags().StringVar(&colorFlag, "color", "auto", "Color output: auto, always, never")

	syncCmd.Flags().BoolP("quiet", "q", false, "Output only updated submodule paths")
	syncCmd.Flags().BoolP("dry-run", "n", false, "Show what would be done without touching anything")
	syncCmd.Flags().Bool("force-remote", false, "Always prefer the remote commit over sibling checkouts")
	syncCmd.Flags().Bool("sequential", false, "Process submodules one at a time")
	syncCmd.Flags().IntP("parallel", "j", 0, fmt.Sprintf("Concurrency cap (default %d)", subsync.DefaultParallel))
	syncCmd.Flags().StringArrayP("submodule", "s", nil, "Only process submodules matching pattern (repeatable)")
	rootCmd.AddCommand(syncCmd)

	planCmd.Flags().StringArrayP("submodule", "s", nil, "Only plan submodules matching pattern (repeatable)")
	rootCmd.AddCommand(planCmd)

	rootCmd.AddCommand(listCmd)

	return rootCmd
}

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "subsync:", err)
		return 1
	}
	return 0
}

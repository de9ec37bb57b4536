package subsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
)

// ListCommand reports the configured submodules.
type ListCommand struct {
	Git *GitRunner
	Log *slog.Logger
}

// ListResult holds the parsed submodule set.
type ListResult struct {
	Submodules []Submodule
}

// NewListCommand creates a ListCommand with explicit dependencies.
func NewListCommand(git *GitRunner, log *slog.Logger) *ListCommand {
	if log == nil {
		log = NewNopLogger()
	}
	return &ListCommand{Git: git, Log: log}
}

// NewDefaultListCommand creates a ListCommand with production defaults.
func NewDefaultListCommand(rootDir string, log *slog.Logger) *ListCommand {
	return NewListCommand(NewGitRunner(rootDir, WithLogger(log)), log)
}

// Run parses .gitmodules into the submodule set.
func (c *ListCommand) Run(ctx context.Context) (ListResult, error) {
	subs, err := c.Git.Submodules(ctx)
	if err != nil {
		return ListResult{}, err
	}
	c.Log.DebugContext(ctx, "submodules parsed",
		LogAttrKeyCategory.String(), LogCategoryGitmodules,
		"count", len(subs))
	return ListResult{Submodules: subs}, nil
}

// ListFormatOptions configures list output formatting.
type ListFormatOptions struct {
	Verbose bool
}

// Format formats the submodule list for display.
func (r ListResult) Format(opts ListFormatOptions) FormatResult {
	var stdout strings.Builder
	if len(r.Submodules) == 0 {
		fmt.Fprintln(&stdout, "no submodules configured")
		return FormatResult{Stdout: stdout.String()}
	}

	tw := tabwriter.NewWriter(&stdout, 0, 0, 2, ' ', 0)
	for _, sub := range r.Submodules {
		branch := sub.Branch
		if branch == "" {
			branch = "-"
		}
		if opts.Verbose {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", sub.Name, sub.Path, branch, sub.URL)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", sub.Name, sub.Path, branch)
		}
	}
	tw.Flush()
	return FormatResult{Stdout: stdout.String()}
}

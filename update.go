package subsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// UpdateStatus is the terminal outcome class of one submodule update.
type UpdateStatus string

const (
	StatusUpdated  UpdateStatus = "updated"
	StatusUpToDate UpdateStatus = "up-to-date"
	StatusSkipped  UpdateStatus = "skipped"
	StatusFailed   UpdateStatus = "failed"
)

// ApplyOutcome records which checkout path applied an update.
type ApplyOutcome string

const (
	OutcomeNone          ApplyOutcome = ""              // no apply happened (skip, up-to-date, dry-run, failure before apply)
	OutcomeFastForwarded ApplyOutcome = "fast-forward"  // branch checkout + fast-forward merge
	OutcomeDetached      ApplyOutcome = "detached-head" // fallback detached checkout
)

// UpdateResult is the immutable terminal record for one submodule.
// Exactly one is produced per submodule per run.
type UpdateResult struct {
	Submodule Submodule
	Selection *CommitSelection // nil when nothing was selected
	Status    UpdateStatus
	Outcome   ApplyOutcome
	Duration  time.Duration
	Detail    string // skip reason or dry-run would-do text
	Err       error
}

// UpdateRunResult aggregates the results of one run.
type UpdateRunResult struct {
	Results []UpdateResult
	DryRun  bool
}

// DefaultParallel is the bounded-parallel concurrency cap. Git subprocess
// invocation and disk I/O dominate cost; more in-flight submodules contend
// for I/O without proportional speedup.
const DefaultParallel = 4

// UpdateOptions configures an update run.
type UpdateOptions struct {
	DryRun      bool
	ForceRemote bool
	Sequential  bool     // each submodule fully completes before the next starts
	Parallel    int      // concurrency cap; 0 means DefaultParallel
	SearchDirs  []string // extra sibling-search directories
}

// UpdateCommand synchronizes submodules with sibling checkouts or remote
// branch heads.
type UpdateCommand struct {
	FS            FileSystem
	Git           *GitRunner // rooted at the superproject
	Log           *slog.Logger
	ResolveBranch BranchResolver
}

// NewUpdateCommand creates an UpdateCommand with explicit dependencies.
func NewUpdateCommand(fs FileSystem, git *GitRunner, log *slog.Logger, resolveBranch BranchResolver) *UpdateCommand {
	if log == nil {
		log = NewNopLogger()
	}
	return &UpdateCommand{
		FS:            fs,
		Git:           git,
		Log:           log,
		ResolveBranch: resolveBranch,
	}
}

// NewDefaultUpdateCommand creates an UpdateCommand with production defaults
// for the superproject at rootDir.
func NewDefaultUpdateCommand(rootDir, defaultBranch string, log *slog.Logger) *UpdateCommand {
	git := NewGitRunner(rootDir, WithLogger(log))
	return NewUpdateCommand(osFS{}, git, log, NewDefaultBranchResolver(git, defaultBranch))
}

// Run drives the per-submodule state machine over all submodules and
// returns one result per submodule. A failure in one submodule never
// aborts the batch; results are sorted by submodule name.
func (c *UpdateCommand) Run(ctx context.Context, submodules []Submodule, opts UpdateOptions) (UpdateRunResult, error) {
	result := UpdateRunResult{DryRun: opts.DryRun}

	cache := newRepoCache()
	planner := NewPlanner(c.FS, c.Git, cache)
	discovery := NewSiblingDiscovery(c.FS, c.Git, c.Log, cache)

	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = DefaultParallel
	}
	if opts.Sequential {
		parallel = 1
	}

	c.Log.DebugContext(ctx, "run started",
		LogAttrKeyCategory.String(), LogCategoryUpdate,
		"submodules", len(submodules),
		"parallel", parallel,
		"dryRun", opts.DryRun)

	if parallel == 1 {
		for _, sub := range submodules {
			result.Results = append(result.Results, c.processSubmodule(ctx, planner, discovery, sub, opts))
		}
	} else {
		// Completed slots refill immediately from the remaining queue, so
		// fast submodules never wait on slow ones.
		sem := make(chan struct{}, parallel)
		out := make(chan UpdateResult, len(submodules))
		for _, sub := range submodules {
			sem <- struct{}{}
			go func(sub Submodule) {
				defer func() { <-sem }()
				out <- c.processSubmodule(ctx, planner, discovery, sub, opts)
			}(sub)
		}
		for range submodules {
			result.Results = append(result.Results, <-out)
		}
	}

	sort.Slice(result.Results, func(i, j int) bool {
		return result.Results[i].Submodule.Name < result.Results[j].Submodule.Name
	})

	c.Log.DebugContext(ctx, "run completed",
		LogAttrKeyCategory.String(), LogCategoryUpdate,
		"updated", result.CountByStatus(StatusUpdated),
		"upToDate", result.CountByStatus(StatusUpToDate),
		"skipped", result.CountByStatus(StatusSkipped),
		"failed", result.CountByStatus(StatusFailed))

	return result, nil
}

// processSubmodule runs the full state machine for one submodule:
// PREPARING -> SELECTING -> COMPARING -> APPLYING, with any error turning
// into a failed result rather than propagating. Duration always covers the
// submodule's full processing, failures included.
func (c *UpdateCommand) processSubmodule(ctx context.Context, planner *Planner, discovery *SiblingDiscovery, sub Submodule, opts UpdateOptions) (result UpdateResult) {
	start := time.Now()
	result.Submodule = sub
	defer func() {
		result.Duration = time.Since(start)
	}()

	plan, err := planner.PrepareUpdatePlan(ctx, sub, c.ResolveBranch)
	if err != nil {
		return c.fail(ctx, result, fmt.Errorf("failed to plan %s: %w", sub.Name, err))
	}
	result.Submodule = plan.Submodule

	if opts.DryRun {
		return c.simulate(ctx, result, plan)
	}

	plan = planner.EnrichPlanWithCurrentSHA(ctx, plan)

	// PREPARING
	if err := c.prepare(ctx, plan); err != nil {
		return c.fail(ctx, result, err)
	}

	// SELECTING
	selection := c.selectTarget(ctx, discovery, plan, opts)
	result.Selection = selection
	if selection == nil {
		result.Status = StatusSkipped
		result.Detail = "no candidate commit on either side"
		c.Log.InfoContext(ctx, "skipped: no candidate commit",
			LogAttrKeyCategory.String(), LogCategoryUpdate,
			"submodule", plan.Submodule.Name)
		return result
	}
	if selection.Diverged() {
		c.Log.WarnContext(ctx, "sibling and remote diverged",
			LogAttrKeyCategory.String(), LogCategorySelect,
			"submodule", plan.Submodule.Name,
			"reason", selection.Reason)
	}

	// COMPARING: the common case on repeat runs, kept to one string
	// comparison with no extra git calls.
	if plan.CurrentSHA != nil && *plan.CurrentSHA == selection.SHA {
		result.Status = StatusUpToDate
		return result
	}

	// APPLYING
	workTree := joinRoot(c.Git.Dir(), plan.Submodule.Path)
	outcome, err := c.apply(ctx, c.Git.InDir(workTree), plan.Branch.Branch, selection.SHA)
	if err != nil {
		return c.fail(ctx, result, fmt.Errorf("failed to apply %s to %s: %w", selection.SHA.Short(), plan.Submodule.Path, err))
	}
	result.Status = StatusUpdated
	result.Outcome = outcome
	return result
}

// fail stamps a failed result, logging the error once.
func (c *UpdateCommand) fail(ctx context.Context, result UpdateResult, err error) UpdateResult {
	result.Status = StatusFailed
	result.Err = err
	c.Log.DebugContext(ctx, "submodule failed",
		LogAttrKeyCategory.String(), LogCategoryUpdate,
		"submodule", result.Submodule.Name,
		"error", err)
	return result
}

// simulate terminates the state machine under dry-run from plan inspection
// alone. No adapter call is made past plan building.
func (c *UpdateCommand) simulate(ctx context.Context, result UpdateResult, plan SubmoduleUpdatePlan) UpdateResult {
	if plan.Submodule.URL == "" {
		result.Status = StatusSkipped
		result.Detail = "no url configured; nothing to select"
		return result
	}

	var steps []string
	if plan.NeedsInit {
		steps = append(steps, "init")
	}
	steps = append(steps, "sync url", "fetch", "select commit for branch "+plan.Branch.Branch, "apply")
	result.Status = StatusUpdated
	result.Detail = "would " + strings.Join(steps, ", ")

	c.Log.InfoContext(ctx, result.Detail,
		LogAttrKeyCategory.String(), LogCategoryUpdate,
		"submodule", plan.Submodule.Name)
	return result
}

// prepare brings the submodule working tree to a fetchable state: init
// when missing, then URL sync and a fetch of all remotes. Failures carry
// the path and the step that broke.
func (c *UpdateCommand) prepare(ctx context.Context, plan SubmoduleUpdatePlan) error {
	relPath := plan.Submodule.Path

	if plan.NeedsInit {
		if err := c.Git.InitSubmodule(ctx, relPath); err != nil {
			return fmt.Errorf("failed to prepare %s (init): %w", relPath, err)
		}
	}
	// Sync unconditionally: .gitmodules is authoritative for the remote
	// URL and upstream URLs drift.
	if err := c.Git.SyncSubmoduleURL(ctx, relPath); err != nil {
		return fmt.Errorf("failed to prepare %s (sync url): %w", relPath, err)
	}
	subGit := c.Git.InDir(joinRoot(c.Git.Dir(), relPath))
	if err := subGit.FetchAll(ctx); err != nil {
		return fmt.Errorf("failed to prepare %s (fetch): %w", relPath, err)
	}
	return nil
}

// selectTarget gathers the sibling and remote candidates and runs commit
// selection against the submodule repository.
func (c *UpdateCommand) selectTarget(ctx context.Context, discovery *SiblingDiscovery, plan SubmoduleUpdatePlan, opts UpdateOptions) *CommitSelection {
	branch := plan.Branch.Branch
	subGit := c.Git.InDir(joinRoot(c.Git.Dir(), plan.Submodule.Path))

	var local *CommitSHA
	if sibling := discovery.FindSibling(ctx, plan.Submodule, branch, opts.SearchDirs); sibling != nil {
		local = sibling.CommitSHA
	}

	var remote *CommitSHA
	if sha, err := subGit.ResolveRef(ctx, "origin/"+branch); err == nil {
		remote = &sha
	}

	selection := SelectCommit(ctx, subGit, local, remote, SelectOptions{ForceRemote: opts.ForceRemote})
	if selection != nil {
		c.Log.DebugContext(ctx, "commit selected",
			LogAttrKeyCategory.String(), LogCategorySelect,
			"submodule", plan.Submodule.Name,
			"sha", selection.SHA.Short(),
			"source", string(selection.Source),
			"reason", selection.Reason)
	}
	return selection
}

// apply moves the submodule working tree to sha. The branch checkout plus
// fast-forward path keeps the cleanest history; any failure there falls
// back unconditionally to a detached checkout of the target SHA.
func (c *UpdateCommand) apply(ctx context.Context, subGit *GitRunner, branch string, sha CommitSHA) (ApplyOutcome, error) {
	ffErr := c.applyFastForward(ctx, subGit, branch, sha)
	if ffErr == nil {
		c.Log.InfoContext(ctx, "fast-forwarded "+branch+" to "+sha.Short(),
			LogAttrKeyCategory.String(), LogCategoryUpdate,
			"dir", subGit.Dir())
		return OutcomeFastForwarded, nil
	}
	c.Log.InfoContext(ctx, "fast-forward path failed, falling back to detached checkout",
		LogAttrKeyCategory.String(), LogCategoryUpdate,
		"dir", subGit.Dir(),
		"error", ffErr)

	if err := subGit.CheckoutDetached(ctx, sha); err != nil {
		return OutcomeNone, errors.Join(ffErr, err)
	}
	c.Log.InfoContext(ctx, "checked out "+sha.Short()+" detached",
		LogAttrKeyCategory.String(), LogCategoryUpdate,
		"dir", subGit.Dir())
	return OutcomeDetached, nil
}

// applyFastForward is step one of the two-step apply: checkout the
// resolved branch by name, then fast-forward it to the target.
func (c *UpdateCommand) applyFastForward(ctx context.Context, subGit *GitRunner, branch string, sha CommitSHA) error {
	if err := subGit.CheckoutBranch(ctx, branch); err != nil {
		return err
	}
	return subGit.MergeFastForward(ctx, sha)
}

// CountByStatus returns the number of results with the given status.
func (r UpdateRunResult) CountByStatus(status UpdateStatus) int {
	count := 0
	for i := range r.Results {
		if r.Results[i].Status == status {
			count++
		}
	}
	return count
}

// HasFailures returns true if any submodule failed.
func (r UpdateRunResult) HasFailures() bool {
	return r.CountByStatus(StatusFailed) > 0
}

// TotalDuration sums the per-submodule processing durations.
func (r UpdateRunResult) TotalDuration() time.Duration {
	var total time.Duration
	for i := range r.Results {
		total += r.Results[i].Duration
	}
	return total
}

// UpdateFormatOptions configures update output formatting.
type UpdateFormatOptions struct {
	Verbose bool
	Quiet   bool
}

// Format formats the run result for display.
func (r UpdateRunResult) Format(opts UpdateFormatOptions) FormatResult {
	if opts.Quiet {
		return r.formatQuiet()
	}
	return r.formatDefault(opts)
}

// formatQuiet outputs only the paths of updated submodules and errors.
func (r UpdateRunResult) formatQuiet() FormatResult {
	var stdout, stderr strings.Builder
	for i := range r.Results {
		res := &r.Results[i]
		switch res.Status {
		case StatusUpdated:
			fmt.Fprintln(&stdout, res.Submodule.Path)
		case StatusFailed:
			fmt.Fprintf(&stderr, "error: %s: %v\n", res.Submodule.Name, res.Err)
		}
	}
	return FormatResult{Stdout: stdout.String(), Stderr: stderr.String()}
}

// formatDefault outputs the default or verbose format.
func (r UpdateRunResult) formatDefault(opts UpdateFormatOptions) FormatResult {
	var stdout, stderr strings.Builder

	if len(r.Results) == 0 {
		fmt.Fprintln(&stdout, "no submodules to process")
		return FormatResult{Stdout: stdout.String()}
	}

	if r.DryRun {
		fmt.Fprintln(&stdout, "dry-run: no changes will be made")
	}

	iw := NewIndentWriter(&stdout, "  ")
	for i := range r.Results {
		res := &r.Results[i]
		iw.Writeln(res.formatLine())
		if opts.Verbose {
			iw.Indent()
			if res.Selection != nil {
				iw.Writef("selection: %s from %s %s", res.Selection.SHA.Short(), res.Selection.Source, colorReason("("+res.Selection.Reason+")"))
			}
			if res.Outcome != OutcomeNone {
				iw.Writef("applied via %s", res.Outcome)
			}
			if res.Detail != "" {
				iw.Writeln(res.Detail)
			}
			iw.Writef("took %s", res.Duration.Round(time.Millisecond))
			iw.Dedent()
		}
		if res.Err != nil {
			fmt.Fprintf(&stderr, "error: %s: %s\n", res.Submodule.Name, colorError(res.Err.Error()))
		}
	}

	fmt.Fprintln(&stdout, colorSummary(r.summaryLine()))
	return FormatResult{Stdout: stdout.String(), Stderr: stderr.String()}
}

// formatLine renders the one-line status for a result.
func (res *UpdateResult) formatLine() string {
	var sb strings.Builder
	switch res.Status {
	case StatusUpdated:
		sb.WriteString(colorUpdated("updated"))
		sb.WriteString("    ")
		sb.WriteString(res.Submodule.Name)
		if res.Selection != nil {
			sb.WriteString(" -> " + res.Selection.SHA.Short())
			sb.WriteString(" " + colorReason("("+string(res.Selection.Source)+")"))
		} else if res.Detail != "" {
			sb.WriteString(" " + colorReason("("+res.Detail+")"))
		}
	case StatusUpToDate:
		sb.WriteString(colorUpToDate("up-to-date"))
		sb.WriteString(" ")
		sb.WriteString(res.Submodule.Name)
	case StatusSkipped:
		sb.WriteString(colorSkipped("skipped"))
		sb.WriteString("    ")
		sb.WriteString(res.Submodule.Name)
		if res.Detail != "" {
			sb.WriteString(" " + colorReason("("+res.Detail+")"))
		}
	case StatusFailed:
		sb.WriteString(colorFailed("failed"))
		sb.WriteString("     ")
		sb.WriteString(res.Submodule.Name)
	}
	return sb.String()
}

// summaryLine renders the aggregate counts.
func (r UpdateRunResult) summaryLine() string {
	return fmt.Sprintf("%d updated, %d up-to-date, %d skipped, %d failed",
		r.CountByStatus(StatusUpdated),
		r.CountByStatus(StatusUpToDate),
		r.CountByStatus(StatusSkipped),
		r.CountByStatus(StatusFailed))
}

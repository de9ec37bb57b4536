package subsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// SubmoduleUpdatePlan is an immutable per-submodule planning snapshot.
// Enrichment produces a new plan value; plans are never mutated after
// creation.
type SubmoduleUpdatePlan struct {
	Submodule       Submodule // path already normalized
	Branch          BranchResolution
	NeedsInit       bool
	RepositoryValid bool
	CurrentSHA      *CommitSHA // only set when the repository is valid and HEAD was readable
}

// Planner builds update plans from current repository state.
type Planner struct {
	FS    FileSystem
	Git   *GitRunner // rooted at the superproject
	cache *repoCache
}

// NewPlanner creates a Planner sharing the given validity cache. A nil
// cache gets a private one.
func NewPlanner(fs FileSystem, git *GitRunner, cache *repoCache) *Planner {
	if cache == nil {
		cache = newRepoCache()
	}
	return &Planner{FS: fs, Git: git, cache: cache}
}

// PrepareUpdatePlan normalizes the submodule path, checks whether a valid
// repository exists at it, and resolves the tracking branch.
func (p *Planner) PrepareUpdatePlan(ctx context.Context, sub Submodule, resolveBranch BranchResolver) (SubmoduleUpdatePlan, error) {
	root := p.Git.Dir()

	normalized, err := NormalizePath(root, sub.Path)
	if err != nil {
		return SubmoduleUpdatePlan{}, err
	}
	sub.Path = normalized

	valid := false
	workTree := joinRoot(root, sub.Path)
	if info, err := p.FS.Stat(workTree); err == nil {
		if !info.IsDir() {
			return SubmoduleUpdatePlan{}, &RepositoryStateError{
				Path:   workTree,
				Reason: "submodule path is occupied by a file",
			}
		}
		valid = p.cache.isValidRepo(ctx, p.Git, workTree)
	}

	branch, err := resolveBranch(ctx, sub)
	if err != nil {
		return SubmoduleUpdatePlan{}, fmt.Errorf("failed to resolve branch for %s: %w", sub.Name, err)
	}

	return SubmoduleUpdatePlan{
		Submodule:       sub,
		Branch:          branch,
		NeedsInit:       !valid,
		RepositoryValid: valid,
	}, nil
}

// EnrichPlanWithCurrentSHA returns a copy of plan with the submodule's
// current HEAD SHA filled in. Skipped for not-yet-initialized submodules,
// and a failed read returns the original plan unchanged; an unreadable
// HEAD is not an error at planning time.
func (p *Planner) EnrichPlanWithCurrentSHA(ctx context.Context, plan SubmoduleUpdatePlan) SubmoduleUpdatePlan {
	if !plan.RepositoryValid {
		return plan
	}
	subGit := p.Git.InDir(joinRoot(p.Git.Dir(), plan.Submodule.Path))
	sha, err := subGit.Head(ctx)
	if err != nil {
		return plan
	}
	enriched := plan
	enriched.CurrentSHA = &sha
	return enriched
}

// PlanCommand builds and reports update plans without mutating anything.
type PlanCommand struct {
	FS            FileSystem
	Git           *GitRunner
	Log           *slog.Logger
	ResolveBranch BranchResolver
}

// PlanResult holds the plans built for one inspection pass.
type PlanResult struct {
	Plans []SubmoduleUpdatePlan
}

// NewPlanCommand creates a PlanCommand with explicit dependencies.
func NewPlanCommand(fs FileSystem, git *GitRunner, log *slog.Logger, resolveBranch BranchResolver) *PlanCommand {
	if log == nil {
		log = NewNopLogger()
	}
	return &PlanCommand{FS: fs, Git: git, Log: log, ResolveBranch: resolveBranch}
}

// NewDefaultPlanCommand creates a PlanCommand with production defaults.
func NewDefaultPlanCommand(rootDir, defaultBranch string, log *slog.Logger) *PlanCommand {
	git := NewGitRunner(rootDir, WithLogger(log))
	return NewPlanCommand(osFS{}, git, log, NewDefaultBranchResolver(git, defaultBranch))
}

// Run builds an enriched plan per submodule. Read-only.
func (c *PlanCommand) Run(ctx context.Context, submodules []Submodule) (PlanResult, error) {
	var result PlanResult
	planner := NewPlanner(c.FS, c.Git, nil)

	for _, sub := range submodules {
		plan, err := planner.PrepareUpdatePlan(ctx, sub, c.ResolveBranch)
		if err != nil {
			return result, err
		}
		plan = planner.EnrichPlanWithCurrentSHA(ctx, plan)
		c.Log.DebugContext(ctx, "plan built",
			LogAttrKeyCategory.String(), LogCategoryPlan,
			"submodule", plan.Submodule.Name,
			"branch", plan.Branch.Branch,
			"needsInit", plan.NeedsInit)
		result.Plans = append(result.Plans, plan)
	}
	return result, nil
}

// PlanFormatOptions configures plan output formatting.
type PlanFormatOptions struct {
	Verbose bool
}

// Format formats the plan result for display.
func (r PlanResult) Format(opts PlanFormatOptions) FormatResult {
	var stdout strings.Builder
	if len(r.Plans) == 0 {
		fmt.Fprintln(&stdout, "no submodules configured")
		return FormatResult{Stdout: stdout.String()}
	}

	iw := NewIndentWriter(&stdout, "  ")
	for i := range r.Plans {
		plan := &r.Plans[i]
		head := "unborn"
		if plan.CurrentSHA != nil {
			head = plan.CurrentSHA.Short()
		}
		state := "ok"
		if plan.NeedsInit {
			state = "needs init"
		}
		iw.Writef("%s %s @ %s (%s)", plan.Submodule.Name, head, plan.Branch.Branch, state)
		if opts.Verbose {
			iw.Indent()
			iw.Writef("path: %s", plan.Submodule.Path)
			iw.Writef("url: %s", plan.Submodule.URL)
			iw.Writef("branch source: %s", plan.Branch.Source)
			iw.Dedent()
		}
	}
	return FormatResult{Stdout: stdout.String()}
}

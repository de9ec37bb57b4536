package subsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// GitExecutor abstracts git command execution for testability.
// Commands are fixed to "git" - only subcommands and args are passed.
type GitExecutor interface {
	// Run executes git with args and returns stdout.
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// ExitError reports a git command that exited non-zero, with its captured
// stderr. Executors return it so callers can branch on the exit code.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("git exited with status %d", e.Code)
	}
	return fmt.Sprintf("git exited with status %d: %s", e.Code, e.Stderr)
}

type osGitExecutor struct{}

func (osGitExecutor) Run(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "git", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, &ExitError{
				Code:   exitErr.ExitCode(),
				Stderr: strings.TrimSpace(string(exitErr.Stderr)),
			}
		}
		return out, err
	}
	return out, nil
}

// GitRunner provides git operations against a single repository directory.
type GitRunner struct {
	Executor GitExecutor
	Log      *slog.Logger

	dir string
}

// GitRunnerOption configures a GitRunner.
type GitRunnerOption func(*GitRunner)

// WithLogger sets the logger used for command tracing.
func WithLogger(log *slog.Logger) GitRunnerOption {
	return func(g *GitRunner) {
		if log != nil {
			g.Log = log
		}
	}
}

// NewGitRunner creates a GitRunner executing against dir.
func NewGitRunner(dir string, opts ...GitRunnerOption) *GitRunner {
	g := &GitRunner{
		Executor: osGitExecutor{},
		Log:      NewNopLogger(),
		dir:      dir,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dir returns the directory this runner executes in.
func (g *GitRunner) Dir() string {
	return g.dir
}

// InDir returns a runner for another directory sharing this runner's
// executor and logger.
func (g *GitRunner) InDir(dir string) *GitRunner {
	return &GitRunner{
		Executor: g.Executor,
		Log:      g.Log,
		dir:      dir,
	}
}

// run executes a git command in the runner's directory with debug tracing.
func (g *GitRunner) run(ctx context.Context, args ...string) ([]byte, error) {
	g.Log.DebugContext(ctx, "git "+strings.Join(args, " "),
		LogAttrKeyCategory.String(), LogCategoryGit,
		"dir", g.dir)
	fullArgs := append([]string{"-C", g.dir}, args...)
	out, err := g.Executor.Run(ctx, fullArgs...)
	if err != nil {
		g.Log.DebugContext(ctx, "git command failed",
			LogAttrKeyCategory.String(), LogCategoryGit,
			"args", strings.Join(args, " "),
			"error", err)
	}
	return out, err
}

// actionErr wraps a failed mutating git call with its context.
func (g *GitRunner) actionErr(op string, err error, suggestion string) error {
	return &GitActionError{Op: op, Dir: g.dir, Err: err, Suggestion: suggestion}
}

// IsRepository reports whether the runner's directory is inside a git
// repository. Probe only; never returns an error.
func (g *GitRunner) IsRepository(ctx context.Context) bool {
	_, err := g.run(ctx, "rev-parse", "--git-dir")
	return err == nil
}

// ResolveRef resolves a ref to a commit SHA. A ref that does not exist is
// an error; callers for which absence is normal should treat any error as
// "no commit".
func (g *GitRunner) ResolveRef(ctx context.Context, ref string) (CommitSHA, error) {
	out, err := g.run(ctx, "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", ref, err)
	}
	return ParseCommitSHA(strings.TrimSpace(string(out)))
}

// Head returns the SHA of the current HEAD commit.
func (g *GitRunner) Head(ctx context.Context) (CommitSHA, error) {
	return g.ResolveRef(ctx, "HEAD")
}

// FetchAll fetches from all configured remotes.
func (g *GitRunner) FetchAll(ctx context.Context) error {
	if _, err := g.run(ctx, "fetch", "--all", "--quiet"); err != nil {
		return g.actionErr("fetch --all", err, "check network access and remote configuration")
	}
	return nil
}

// IsAncestor reports whether a is an ancestor of b. A negative answer from
// git (exit status 1) is not an error; anything else is.
func (g *GitRunner) IsAncestor(ctx context.Context, a, b CommitSHA) (bool, error) {
	_, err := g.run(ctx, "merge-base", "--is-ancestor", a.String(), b.String())
	if err == nil {
		return true, nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code == 1 {
		return false, nil
	}
	return false, g.actionErr("merge-base --is-ancestor", err, "")
}

// CheckoutBranch checks out a local branch by name.
func (g *GitRunner) CheckoutBranch(ctx context.Context, branch string) error {
	if _, err := g.run(ctx, "checkout", branch); err != nil {
		return g.actionErr("checkout "+branch, err, "")
	}
	return nil
}

// MergeFastForward advances the current branch to sha, fast-forward only.
func (g *GitRunner) MergeFastForward(ctx context.Context, sha CommitSHA) error {
	if _, err := g.run(ctx, "merge", "--ff-only", sha.String()); err != nil {
		return g.actionErr("merge --ff-only", err, "local branch has diverged from target")
	}
	return nil
}

// CheckoutDetached checks out sha directly, leaving HEAD detached.
func (g *GitRunner) CheckoutDetached(ctx context.Context, sha CommitSHA) error {
	if _, err := g.run(ctx, "checkout", "--detach", sha.String()); err != nil {
		return g.actionErr("checkout --detach", err, "working tree may have local modifications")
	}
	return nil
}

// SyncSubmoduleURL copies the submodule's .gitmodules URL into the
// submodule's remote configuration. Runs against the superproject root.
func (g *GitRunner) SyncSubmoduleURL(ctx context.Context, relPath string) error {
	if _, err := g.run(ctx, "submodule", "sync", "--", relPath); err != nil {
		return g.actionErr("submodule sync", err, "verify the submodule path in .gitmodules")
	}
	return nil
}

// InitSubmodule initializes and clones a submodule working tree. Runs
// against the superproject root.
func (g *GitRunner) InitSubmodule(ctx context.Context, relPath string) error {
	if _, err := g.run(ctx, "submodule", "update", "--init", "--", relPath); err != nil {
		return g.actionErr("submodule update --init", err, "check the submodule URL is reachable")
	}
	return nil
}

// RemoteURL returns the fetch URL of the named remote.
func (g *GitRunner) RemoteURL(ctx context.Context, remote string) (string, error) {
	out, err := g.run(ctx, "remote", "get-url", remote)
	if err != nil {
		return "", fmt.Errorf("failed to read URL of remote %q: %w", remote, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// RemoteHeadBranch returns the branch name the remote's HEAD points at,
// e.g. "main" for refs/remotes/origin/HEAD -> origin/main.
func (g *GitRunner) RemoteHeadBranch(ctx context.Context, remote string) (string, error) {
	out, err := g.run(ctx, "symbolic-ref", "--short", "refs/remotes/"+remote+"/HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD of remote %q: %w", remote, err)
	}
	ref := strings.TrimSpace(string(out))
	branch, ok := strings.CutPrefix(ref, remote+"/")
	if !ok {
		return "", fmt.Errorf("unexpected remote HEAD ref %q", ref)
	}
	return branch, nil
}

// GitmodulesConfig returns the flattened key=value entries of the
// repository's .gitmodules file.
func (g *GitRunner) GitmodulesConfig(ctx context.Context) ([]byte, error) {
	out, err := g.run(ctx, "config", "-f", ".gitmodules", "--list")
	if err != nil {
		return nil, fmt.Errorf("failed to read .gitmodules: %w", err)
	}
	return out, nil
}

// Submodules parses the repository's .gitmodules into Submodule records.
func (g *GitRunner) Submodules(ctx context.Context) ([]Submodule, error) {
	out, err := g.GitmodulesConfig(ctx)
	if err != nil {
		return nil, err
	}
	return ParseGitmodulesConfig(string(out))
}

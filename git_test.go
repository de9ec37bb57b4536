package subsync

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/subsync/subsync/internal/testutil"
)

func TestGitRunner_RunPrefixesDirectory(t *testing.T) {
	t.Parallel()

	mock := &testutil.MockGitExecutor{}
	git := NewGitRunner("/repo/super", withExecutor(mock))

	git.IsRepository(context.Background())

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if dir, ok := testutil.Dir(calls[0]); !ok || dir != "/repo/super" {
		t.Errorf("dir prefix: got %v", calls[0])
	}
}

func TestGitRunner_InDirSharesExecutor(t *testing.T) {
	t.Parallel()

	mock := &testutil.MockGitExecutor{}
	git := NewGitRunner("/repo/super", withExecutor(mock))

	sub := git.InDir("/repo/super/lib/common")
	sub.IsRepository(context.Background())

	if sub.Dir() != "/repo/super/lib/common" {
		t.Errorf("dir: got %q", sub.Dir())
	}
	if git.Dir() != "/repo/super" {
		t.Errorf("parent dir changed: got %q", git.Dir())
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected the derived runner to reuse the executor, got %d calls", len(calls))
	}
	if dir, _ := testutil.Dir(calls[0]); dir != "/repo/super/lib/common" {
		t.Errorf("dir prefix: got %v", calls[0])
	}
}

func TestGitRunner_ResolveRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		out     string
		err     error
		want    CommitSHA
		wantErr bool
	}{
		{
			name: "trims_trailing_newline",
			out:  "abc1234def5678abc1234def5678abc1234def56\n",
			want: "abc1234def5678abc1234def5678abc1234def56",
		},
		{
			name:    "missing_ref_is_error",
			err:     &ExitError{Code: 128, Stderr: "fatal: Needed a single revision"},
			wantErr: true,
		},
		{
			name:    "non_sha_output_is_error",
			out:     "not-a-sha\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := &testutil.MockGitExecutor{
				RunFunc: func(args ...string) ([]byte, error) {
					return []byte(tt.out), tt.err
				},
			}
			git := NewGitRunner("/repo/super", withExecutor(mock))

			got, err := git.ResolveRef(context.Background(), "origin/main")

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGitRunner_IsAncestor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		want    bool
		wantErr bool
	}{
		{name: "exit_zero_is_ancestor", want: true},
		{name: "exit_one_is_not_ancestor", err: &ExitError{Code: 1}},
		{
			name:    "other_exit_codes_are_errors",
			err:     &ExitError{Code: 128, Stderr: "fatal: Not a valid commit name"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := &testutil.MockGitExecutor{
				RunFunc: func(args ...string) ([]byte, error) {
					return nil, tt.err
				},
			}
			git := NewGitRunner("/repo/super", withExecutor(mock))

			got, err := git.IsAncestor(context.Background(), "abc1234", "def5678")

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var actionErr *GitActionError
				if !errors.As(err, &actionErr) {
					t.Errorf("expected *GitActionError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGitRunner_MutatingOpsWrapErrors(t *testing.T) {
	t.Parallel()

	gitErr := &ExitError{Code: 128, Stderr: "fatal: unable to access remote"}
	failing := func() *GitRunner {
		mock := &testutil.MockGitExecutor{
			RunFunc: func(args ...string) ([]byte, error) {
				return nil, gitErr
			},
		}
		return NewGitRunner("/repo/super", withExecutor(mock))
	}

	tests := []struct {
		name   string
		invoke func(ctx context.Context, git *GitRunner) error
		wantOp string
	}{
		{
			name:   "fetch_all",
			invoke: func(ctx context.Context, git *GitRunner) error { return git.FetchAll(ctx) },
			wantOp: "fetch --all",
		},
		{
			name:   "checkout_branch",
			invoke: func(ctx context.Context, git *GitRunner) error { return git.CheckoutBranch(ctx, "main") },
			wantOp: "checkout main",
		},
		{
			name:   "merge_fast_forward",
			invoke: func(ctx context.Context, git *GitRunner) error { return git.MergeFastForward(ctx, "abc1234") },
			wantOp: "merge --ff-only",
		},
		{
			name:   "checkout_detached",
			invoke: func(ctx context.Context, git *GitRunner) error { return git.CheckoutDetached(ctx, "abc1234") },
			wantOp: "checkout --detach",
		},
		{
			name:   "submodule_sync",
			invoke: func(ctx context.Context, git *GitRunner) error { return git.SyncSubmoduleURL(ctx, "lib/common") },
			wantOp: "submodule sync",
		},
		{
			name:   "submodule_init",
			invoke: func(ctx context.Context, git *GitRunner) error { return git.InitSubmodule(ctx, "lib/common") },
			wantOp: "submodule update --init",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.invoke(context.Background(), failing())
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			var actionErr *GitActionError
			if !errors.As(err, &actionErr) {
				t.Fatalf("expected *GitActionError, got %T: %v", err, err)
			}
			if actionErr.Op != tt.wantOp {
				t.Errorf("op: got %q, want %q", actionErr.Op, tt.wantOp)
			}
			if actionErr.Dir != "/repo/super" {
				t.Errorf("dir: got %q", actionErr.Dir)
			}
			if !errors.Is(err, gitErr) {
				t.Error("wrapped error should unwrap to the executor error")
			}
		})
	}
}

func TestGitRunner_RemoteHeadBranch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		out     string
		err     error
		want    string
		wantErr bool
	}{
		{
			name: "short_ref",
			out:  "origin/main\n",
			want: "main",
		},
		{
			name: "branch_with_slash",
			out:  "origin/release/2.0\n",
			want: "release/2.0",
		},
		{
			name:    "unset_head_is_error",
			err:     &ExitError{Code: 128, Stderr: "ref refs/remotes/origin/HEAD is not a symbolic ref"},
			wantErr: true,
		},
		{
			name:    "foreign_remote_prefix_is_error",
			out:     "upstream/main\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := &testutil.MockGitExecutor{
				RunFunc: func(args ...string) ([]byte, error) {
					return []byte(tt.out), tt.err
				},
			}
			git := NewGitRunner("/repo/super", withExecutor(mock))

			got, err := git.RemoteHeadBranch(context.Background(), "origin")

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGitRunner_Submodules(t *testing.T) {
	t.Parallel()

	mock := &testutil.MockGitExecutor{
		RunFunc: func(args ...string) ([]byte, error) {
			out := strings.Join([]string{
				"submodule.lib/common.path=lib/common",
				"submodule.lib/common.url=https://example.com/org/common.git",
				"submodule.lib/common.branch=main",
				"",
			}, "\n")
			return []byte(out), nil
		},
	}
	git := NewGitRunner("/repo/super", withExecutor(mock))

	got, err := git.Submodules(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Submodule{{
		Name:   "lib/common",
		Path:   "lib/common",
		URL:    "https://example.com/org/common.git",
		Branch: "main",
	}}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("got %+v, want %+v", got, want)
	}

	calls := mock.CallsWithSubcommand("config")
	if len(calls) != 1 {
		t.Fatalf("expected 1 config call, got %d", len(calls))
	}
}

func TestExitError_Error(t *testing.T) {
	t.Parallel()

	withStderr := &ExitError{Code: 128, Stderr: "fatal: bad revision"}
	if got := withStderr.Error(); !strings.Contains(got, "128") || !strings.Contains(got, "bad revision") {
		t.Errorf("got %q", got)
	}

	bare := &ExitError{Code: 1}
	if got := bare.Error(); got != "git exited with status 1" {
		t.Errorf("got %q", got)
	}
}

// withExecutor swaps the executor without exposing the field in the
// public option set.
func withExecutor(e GitExecutor) GitRunnerOption {
	return func(g *GitRunner) {
		g.Executor = e
	}
}

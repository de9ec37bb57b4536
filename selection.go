package subsync

import (
	"context"
	"fmt"
	"strings"
)

// SelectionSource identifies which side a commit selection came from.
type SelectionSource string

const (
	SelectionSourceLocal  SelectionSource = "local"  // sibling checkout
	SelectionSourceRemote SelectionSource = "remote" // remote branch head
)

// CommitSelection is the chosen target commit for one submodule. Reason is
// advisory text for operators; no consumer parses it.
type CommitSelection struct {
	SHA    CommitSHA
	Source SelectionSource
	Reason string
}

// SelectOptions configures commit selection.
type SelectOptions struct {
	// ForceRemote prefers the remote commit whenever one exists,
	// regardless of ancestry.
	ForceRemote bool
}

// SelectCommit decides the target commit for a submodule from an optional
// sibling (local) commit and an optional remote commit. Returns nil when
// neither side has a candidate; callers treat nil as "skip".
//
// When both sides are present and differ, ancestry against the submodule
// repository breaks the tie: the strictly newer side wins, and divergence
// (or an ancestry query failure) deterministically falls back to remote so
// the run always makes forward progress.
func SelectCommit(ctx context.Context, git *GitRunner, local, remote *CommitSHA, opts SelectOptions) *CommitSelection {
	switch {
	case local == nil && remote == nil:
		return nil

	case opts.ForceRemote && remote != nil:
		return &CommitSelection{SHA: *remote, Source: SelectionSourceRemote, Reason: "forced remote preference"}

	case local == nil:
		return &CommitSelection{SHA: *remote, Source: SelectionSourceRemote, Reason: "only available source"}

	case remote == nil:
		return &CommitSelection{SHA: *local, Source: SelectionSourceLocal, Reason: "only available source"}

	case *local == *remote:
		return &CommitSelection{SHA: *remote, Source: SelectionSourceRemote, Reason: "local and remote agree"}
	}

	localIsOlder, errLocal := git.IsAncestor(ctx, *local, *remote)
	if errLocal == nil && localIsOlder {
		return &CommitSelection{SHA: *remote, Source: SelectionSourceRemote, Reason: "remote is ahead of local sibling"}
	}
	remoteIsOlder, errRemote := git.IsAncestor(ctx, *remote, *local)
	if errRemote == nil && remoteIsOlder {
		return &CommitSelection{SHA: *local, Source: SelectionSourceLocal, Reason: "local sibling is ahead of remote"}
	}

	reason := fmt.Sprintf("local %s and remote %s diverged; defaulting to remote", local.Short(), remote.Short())
	if errLocal != nil || errRemote != nil {
		// Ancestry unknown degrades to the divergence default rather than
		// failing the submodule.
		reason = fmt.Sprintf("ancestry of local %s and remote %s unknown; defaulting to remote", local.Short(), remote.Short())
	}
	return &CommitSelection{SHA: *remote, Source: SelectionSourceRemote, Reason: reason}
}

// Diverged reports whether this selection fell back to the divergence
// default, for warn-level operator logging.
func (s *CommitSelection) Diverged() bool {
	if s == nil {
		return false
	}
	return s.Source == SelectionSourceRemote && strings.Contains(s.Reason, "defaulting to remote")
}

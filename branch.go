package subsync

import "context"

// BranchSource records how a submodule's tracking branch was determined.
type BranchSource string

const (
	BranchSourceExplicit BranchSource = "explicit" // branch key in .gitmodules
	BranchSourceDefault  BranchSource = "default"  // fallback policy
)

// BranchResolution is the branch to track for a submodule plus its
// provenance.
type BranchResolution struct {
	Branch string
	Source BranchSource
}

// BranchResolver resolves the tracking branch for a submodule. The engine
// only consumes this interface; the policy lives with the caller.
type BranchResolver func(ctx context.Context, sub Submodule) (BranchResolution, error)

// NewDefaultBranchResolver returns the production resolution policy:
// explicit .gitmodules branch, then the configured default, then the
// submodule remote's HEAD, then "main". The git runner is consulted only
// for the remote-HEAD step and only when the submodule checkout exists.
func NewDefaultBranchResolver(git *GitRunner, configDefault string) BranchResolver {
	return func(ctx context.Context, sub Submodule) (BranchResolution, error) {
		if sub.Branch != "" {
			return BranchResolution{Branch: sub.Branch, Source: BranchSourceExplicit}, nil
		}
		if configDefault != "" {
			return BranchResolution{Branch: configDefault, Source: BranchSourceDefault}, nil
		}
		subGit := git.InDir(joinRoot(git.Dir(), sub.Path))
		if subGit.IsRepository(ctx) {
			if branch, err := subGit.RemoteHeadBranch(ctx, "origin"); err == nil {
				return BranchResolution{Branch: branch, Source: BranchSourceDefault}, nil
			}
		}
		return BranchResolution{Branch: "main", Source: BranchSourceDefault}, nil
	}
}

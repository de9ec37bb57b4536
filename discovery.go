package subsync

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// SiblingRepo describes a local checkout discovered as an alternative
// commit source for a submodule.
type SiblingRepo struct {
	Name      string
	Path      string
	IsValid   bool
	CommitSHA *CommitSHA // nil when the branch could not be resolved there
}

// repoCache memoizes repository-validity probes for one run. Entries are
// never invalidated mid-run; the filesystem is assumed stable for the
// duration of a single invocation.
type repoCache struct {
	mu      sync.Mutex
	entries map[string]bool
}

func newRepoCache() *repoCache {
	return &repoCache{entries: make(map[string]bool)}
}

// isValidRepo reports whether path is a valid git repository, probing at
// most once per path per run.
func (c *repoCache) isValidRepo(ctx context.Context, git *GitRunner, path string) bool {
	c.mu.Lock()
	valid, seen := c.entries[path]
	c.mu.Unlock()
	if seen {
		return valid
	}

	valid = git.InDir(path).IsRepository(ctx)

	c.mu.Lock()
	c.entries[path] = valid
	c.mu.Unlock()
	return valid
}

// SiblingDiscovery searches local directories near the superproject for
// checkouts tracking the same upstream as a submodule. Read-only.
type SiblingDiscovery struct {
	FS    FileSystem
	Git   *GitRunner // rooted at the superproject
	Log   *slog.Logger
	cache *repoCache
}

// NewSiblingDiscovery creates a SiblingDiscovery sharing the given
// validity cache. A nil cache gets a private one.
func NewSiblingDiscovery(fs FileSystem, git *GitRunner, log *slog.Logger, cache *repoCache) *SiblingDiscovery {
	if log == nil {
		log = NewNopLogger()
	}
	if cache == nil {
		cache = newRepoCache()
	}
	return &SiblingDiscovery{FS: fs, Git: git, Log: log, cache: cache}
}

// FindSibling searches the candidate directories for a valid repository
// whose origin URL matches the submodule's declared URL, and resolves the
// commit the tracking branch points at there. Returns nil when no
// candidate matches; absence is a normal outcome, not an error.
//
// Candidates are the entries of the superproject root's parent directory
// plus any configured extra search directories, visited in sorted order.
func (d *SiblingDiscovery) FindSibling(ctx context.Context, sub Submodule, branch string, extraDirs []string) *SiblingRepo {
	if sub.URL == "" {
		return nil
	}

	root := d.Git.Dir()
	for _, dir := range d.candidateDirs(root, extraDirs) {
		sibling := d.probeCandidate(ctx, dir, sub, branch)
		if sibling != nil {
			d.Log.DebugContext(ctx, "sibling matched",
				LogAttrKeyCategory.String(), LogCategoryDiscover,
				"submodule", sub.Name,
				"sibling", sibling.Path,
				"branch", branch)
			return sibling
		}
	}

	d.Log.DebugContext(ctx, "no sibling found",
		LogAttrKeyCategory.String(), LogCategoryDiscover,
		"submodule", sub.Name,
		"url", sub.URL)
	return nil
}

// candidateDirs returns the deterministic, bounded candidate set.
func (d *SiblingDiscovery) candidateDirs(root string, extraDirs []string) []string {
	seen := make(map[string]bool)
	var dirs []string

	add := func(dir string) {
		if dir == "" || dir == root || seen[dir] {
			return
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}

	parent := filepath.Dir(root)
	if entries, err := d.FS.ReadDir(parent); err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				add(filepath.Join(parent, entry.Name()))
			}
		}
	}
	for _, dir := range extraDirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		add(filepath.Clean(dir))
	}

	sort.Strings(dirs)
	return dirs
}

// probeCandidate checks one directory and resolves the branch commit on
// match. Returns nil when the candidate does not match.
func (d *SiblingDiscovery) probeCandidate(ctx context.Context, dir string, sub Submodule, branch string) *SiblingRepo {
	if !d.cache.isValidRepo(ctx, d.Git, dir) {
		return nil
	}

	candidateGit := d.Git.InDir(dir)
	url, err := candidateGit.RemoteURL(ctx, "origin")
	if err != nil || !remoteURLsMatch(url, sub.URL) {
		return nil
	}

	sibling := &SiblingRepo{
		Name:    filepath.Base(dir),
		Path:    dir,
		IsValid: true,
	}
	if sha, err := candidateGit.ResolveRef(ctx, branch); err == nil {
		sibling.CommitSHA = &sha
	}
	return sibling
}

// remoteURLsMatch compares two remote URLs tolerantly: protocol, a ".git"
// suffix, and trailing slashes are ignored, and a bare "org/repo" tail
// matches a fully qualified URL for the same repository.
func remoteURLsMatch(a, b string) bool {
	na, nb := normalizeRemoteURL(a), normalizeRemoteURL(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return strings.HasSuffix(na, "/"+nb) || strings.HasSuffix(nb, "/"+na)
}

// normalizeRemoteURL reduces a remote URL to lowercase host/path form.
func normalizeRemoteURL(url string) string {
	u := strings.TrimSpace(strings.ToLower(url))
	if _, rest, found := strings.Cut(u, "://"); found {
		u = rest
	}
	// scp-like syntax: git@host:org/repo.git
	if at := strings.Index(u, "@"); at >= 0 {
		u = u[at+1:]
	}
	u = strings.Replace(u, ":", "/", 1)
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, ".git")
	return u
}

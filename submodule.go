package subsync

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Submodule is one entry of the superproject's .gitmodules file.
// Immutable input to planning; Branch is empty unless explicitly configured.
type Submodule struct {
	Name   string
	Path   string // repository-root-relative, forward-slash normalized
	URL    string
	Branch string
}

// ParseGitmodulesConfig parses the output of
// `git config -f .gitmodules --list` into Submodule records, ordered by name.
//
// Input format, one entry per line:
//
//	submodule.<name>.path=lib/common
//	submodule.<name>.url=https://example.com/common.git
//	submodule.<name>.branch=main
func ParseGitmodulesConfig(out string) ([]Submodule, error) {
	byName := make(map[string]*Submodule)
	var order []string

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, &ConfigurationError{Field: ".gitmodules", Value: line, Reason: "not a key=value entry"}
		}
		rest, ok := strings.CutPrefix(key, "submodule.")
		if !ok {
			// .gitmodules may carry unrelated sections; ignore them.
			continue
		}
		// The submodule name may itself contain dots; the setting name is
		// everything after the last one.
		sep := strings.LastIndex(rest, ".")
		if sep <= 0 || sep == len(rest)-1 {
			return nil, &ConfigurationError{Field: ".gitmodules", Value: key, Reason: "malformed submodule key"}
		}
		name, setting := rest[:sep], rest[sep+1:]

		sub, seen := byName[name]
		if !seen {
			sub = &Submodule{Name: name}
			byName[name] = sub
			order = append(order, name)
		}
		switch setting {
		case "path":
			sub.Path = value
		case "url":
			sub.URL = value
		case "branch":
			sub.Branch = value
		default:
			// update/ignore/shallow and friends are not ours to interpret.
		}
	}

	sort.Strings(order)
	subs := make([]Submodule, 0, len(order))
	for _, name := range order {
		sub := byName[name]
		if sub.Path == "" {
			return nil, &ConfigurationError{Field: ".gitmodules", Value: sub.Name, Reason: "submodule entry has no path"}
		}
		subs = append(subs, *sub)
	}
	return subs, nil
}

// joinRoot joins a forward-slash repository-relative path onto root using
// the platform separator.
func joinRoot(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

// NormalizePath converts a submodule path to repository-root-relative,
// forward-slash form. Absolute paths from malformed .gitmodules entries are
// rewritten relative to root.
func NormalizePath(root, path string) (string, error) {
	p := filepath.FromSlash(path)
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(root, p)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", &ConfigurationError{
				Field:  "path",
				Value:  path,
				Reason: fmt.Sprintf("absolute path outside repository root %s", root),
			}
		}
		p = rel
	}
	return filepath.ToSlash(filepath.Clean(p)), nil
}

package subsync

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// FilterSubmodules restricts subs to those whose name or path matches the
// include patterns (all pass when empty) and matches no exclude pattern.
// Patterns are doublestar globs matched against both the submodule name
// and its forward-slash path.
func FilterSubmodules(subs []Submodule, include, exclude []string) ([]Submodule, error) {
	var out []Submodule
	for _, sub := range subs {
		included := len(include) == 0
		for _, pattern := range include {
			ok, err := matchSubmodule(pattern, sub)
			if err != nil {
				return nil, err
			}
			if ok {
				included = true
				break
			}
		}
		if !included {
			continue
		}

		excluded := false
		for _, pattern := range exclude {
			ok, err := matchSubmodule(pattern, sub)
			if err != nil {
				return nil, err
			}
			if ok {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, sub)
		}
	}
	return out, nil
}

func matchSubmodule(pattern string, sub Submodule) (bool, error) {
	for _, candidate := range []string{sub.Name, sub.Path} {
		ok, err := doublestar.Match(pattern, candidate)
		if err != nil {
			return false, fmt.Errorf("invalid submodule pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

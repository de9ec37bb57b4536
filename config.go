package subsync

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	configDir           = ".subsync"
	configFileName      = "settings.toml"
	localConfigFileName = "settings.local.toml"
)

// Config holds tool settings from .subsync/settings.toml, with
// settings.local.toml overriding per-machine.
type Config struct {
	// Parallel is the bounded-parallel concurrency cap. 0 means the
	// built-in default; 1 is effectively sequential.
	Parallel int `toml:"parallel"`
	// ForceRemote prefers remote commits over sibling checkouts.
	ForceRemote bool `toml:"force_remote"`
	// DefaultBranch is used when .gitmodules declares no branch.
	DefaultBranch string `toml:"default_branch"`
	// SearchDirs are extra sibling-search directories, absolute or
	// relative to the superproject root.
	SearchDirs []string `toml:"search_dirs"`
	// Include/Exclude are doublestar patterns restricting the processed
	// submodule set.
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

// LoadConfigResult carries the merged config plus non-fatal warnings.
type LoadConfigResult struct {
	Config   *Config
	Warnings []string
}

// LoadConfig loads and merges the project and local settings files under
// dir. Missing files are not an error; an empty Config is returned when
// neither exists.
func LoadConfig(dir string) (*LoadConfigResult, error) {
	result := &LoadConfigResult{Config: &Config{}}

	projPath := filepath.Join(dir, configDir, configFileName)
	if err := mergeConfigFile(result, projPath); err != nil {
		return nil, err
	}
	localPath := filepath.Join(dir, configDir, localConfigFileName)
	if err := mergeConfigFile(result, localPath); err != nil {
		return nil, err
	}

	if result.Config.Parallel < 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("parallel %d is negative, using default", result.Config.Parallel))
		result.Config.Parallel = 0
	}
	return result, nil
}

// mergeConfigFile decodes path into the result config. Scalars override,
// lists append with duplicates dropped.
func mergeConfigFile(result *LoadConfigResult, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	var file Config
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", path, err)
	}
	for _, key := range meta.Undecoded() {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("unknown key %q in %s", key, path))
	}

	cfg := result.Config
	if file.Parallel != 0 {
		cfg.Parallel = file.Parallel
	}
	if file.ForceRemote {
		cfg.ForceRemote = true
	}
	if file.DefaultBranch != "" {
		cfg.DefaultBranch = file.DefaultBranch
	}
	cfg.SearchDirs = appendUnique(cfg.SearchDirs, file.SearchDirs)
	cfg.Include = appendUnique(cfg.Include, file.Include)
	cfg.Exclude = appendUnique(cfg.Exclude, file.Exclude)
	return nil
}

func appendUnique(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range src {
		if !seen[s] {
			seen[s] = true
			dst = append(dst, s)
		}
	}
	return dst
}

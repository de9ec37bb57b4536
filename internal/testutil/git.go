package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// SetupTestRepo creates a temporary git repository for testing.
// Returns parentDir (the directory holding sibling checkouts) and
// superDir (the superproject root).
func SetupTestRepo(t *testing.T) (parentDir, superDir string) {
	t.Helper()

	parentDir = t.TempDir()
	superDir = filepath.Join(parentDir, "super")

	if err := os.MkdirAll(superDir, 0755); err != nil {
		t.Fatal(err)
	}

	RunGit(t, superDir, "init")
	RunGit(t, superDir, "config", "user.email", "test@example.com")
	RunGit(t, superDir, "config", "user.name", "Test User")
	RunGit(t, superDir, "config", "protocol.file.allow", "always")
	RunGit(t, superDir, "commit", "--allow-empty", "-m", "initial")

	return parentDir, superDir
}

// WriteGitmodules writes a .gitmodules file declaring the given
// path -> url entries and stages it.
func WriteGitmodules(t *testing.T, superDir string, entries map[string]string) {
	t.Helper()

	var sb strings.Builder
	for path, url := range entries {
		fmt.Fprintf(&sb, "[submodule %q]\n\tpath = %s\n\turl = %s\n", path, path, url)
	}
	if err := os.WriteFile(filepath.Join(superDir, ".gitmodules"), []byte(sb.String()), 0644); err != nil {
		t.Fatal(err)
	}
	RunGit(t, superDir, "add", ".gitmodules")
}

// RunGit executes a git command in the specified directory.
// Fails the test if the command fails.
func RunGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return string(out)
}

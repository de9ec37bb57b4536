package testutil

import (
	"context"
	"slices"
	"sync"
)

// MockGitExecutor is a mock implementation of subsync.GitExecutor for
// testing. Args always start with "-C <dir>". Every call is recorded;
// recording and dispatch are safe for concurrent use.
type MockGitExecutor struct {
	// RunFunc handles each invocation. Nil returns empty output.
	RunFunc func(args ...string) ([]byte, error)

	mu    sync.Mutex
	calls [][]string
}

func (m *MockGitExecutor) Run(_ context.Context, args ...string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, slices.Clone(args))
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(args...)
	}
	return nil, nil
}

// Calls returns a copy of all recorded invocations.
func (m *MockGitExecutor) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.calls))
	for i, call := range m.calls {
		out[i] = slices.Clone(call)
	}
	return out
}

// CallsWithSubcommand returns the recorded invocations whose subcommand
// (first arg after the "-C <dir>" prefix) matches name.
func (m *MockGitExecutor) CallsWithSubcommand(name string) [][]string {
	var out [][]string
	for _, call := range m.Calls() {
		if sub, ok := Subcommand(call); ok && sub == name {
			out = append(out, call)
		}
	}
	return out
}

// Subcommand extracts the git subcommand from a recorded call.
func Subcommand(call []string) (string, bool) {
	args := call
	if len(args) >= 2 && args[0] == "-C" {
		args = args[2:]
	}
	if len(args) == 0 {
		return "", false
	}
	return args[0], true
}

// Dir extracts the -C directory from a recorded call.
func Dir(call []string) (string, bool) {
	if len(call) >= 2 && call[0] == "-C" {
		return call[1], true
	}
	return "", false
}

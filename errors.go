package subsync

import "fmt"

// RepositoryStateError reports a path that is not the valid git repository
// the operation expected.
type RepositoryStateError struct {
	Path   string
	Reason string
}

func (e *RepositoryStateError) Error() string {
	return fmt.Sprintf("repository state error at %s: %s", e.Path, e.Reason)
}

// GitActionError reports a failed git adapter call. It carries the
// underlying cause and, where known, an actionable suggestion.
type GitActionError struct {
	Op         string // git subcommand, e.g. "fetch", "merge --ff-only"
	Dir        string // working directory the command ran in
	Err        error
	Suggestion string
}

func (e *GitActionError) Error() string {
	msg := fmt.Sprintf("git %s failed in %s: %v", e.Op, e.Dir, e.Err)
	if e.Suggestion != "" {
		msg += " (" + e.Suggestion + ")"
	}
	return msg
}

func (e *GitActionError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a malformed configuration value, from either
// .gitmodules or the settings file.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

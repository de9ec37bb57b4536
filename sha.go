package subsync

import "fmt"

// CommitSHA is a validated git commit identifier: 7 to 40 lowercase or
// uppercase hex characters (abbreviated or full object name).
type CommitSHA string

const (
	minSHALength = 7
	maxSHALength = 40
)

// ParseCommitSHA validates s and returns it as a CommitSHA.
// Malformed input is a ConfigurationError.
func ParseCommitSHA(s string) (CommitSHA, error) {
	if len(s) < minSHALength || len(s) > maxSHALength {
		return "", &ConfigurationError{
			Field:  "sha",
			Value:  s,
			Reason: fmt.Sprintf("length %d outside %d-%d", len(s), minSHALength, maxSHALength),
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return "", &ConfigurationError{
				Field:  "sha",
				Value:  s,
				Reason: fmt.Sprintf("non-hex character %q at offset %d", c, i),
			}
		}
	}
	return CommitSHA(s), nil
}

// String returns the full SHA string.
func (s CommitSHA) String() string {
	return string(s)
}

// Short returns the abbreviated form used in log lines and summaries.
func (s CommitSHA) Short() string {
	if len(s) <= minSHALength {
		return string(s)
	}
	return string(s[:minSHALength])
}

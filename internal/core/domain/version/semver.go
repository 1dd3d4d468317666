package version

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	// bare N.N.N anywhere in the input
	barePattern = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

	// quoted N.N.N as it appears in a plugin source file
	quotedPattern = regexp.MustCompile(`['"](\d+)\.(\d+)\.(\d+)['"]`)
)

// SemVer is a major.minor.patch triple. Pre-release and build metadata are
// not supported.
type SemVer struct {
	Major int
	Minor int
	Patch int
}

// ParseError reports that no usable version literal was found. It means
// "unknown", never "no update".
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("no version literal in %q: %s", truncate(e.Input, 64), e.Reason)
	}
	return fmt.Sprintf("no version literal in %q", truncate(e.Input, 64))
}

// Parse returns the first N.N.N substring of s.
func Parse(s string) (SemVer, error) {
	return match(barePattern, s)
}

// Extract returns the first quoted N.N.N literal of a manifest body. Both
// single and double quotes are accepted.
func Extract(manifest string) (SemVer, error) {
	return match(quotedPattern, manifest)
}

// MustParse is like Parse but panics on error.
func MustParse(s string) SemVer {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func match(re *regexp.Regexp, s string) (SemVer, error) {
	groups := re.FindStringSubmatch(s)
	if groups == nil {
		return SemVer{}, &ParseError{Input: s}
	}

	var parts [3]int
	for i := range parts {
		n, err := strconv.Atoi(groups[i+1])
		if err != nil {
			return SemVer{}, &ParseError{Input: s, Reason: err.Error()}
		}
		parts[i] = n
	}

	return SemVer{Major: parts[0], Minor: parts[1], Patch: parts[2]}, nil
}

// Compare returns -1, 0 or 1 ordering v against other major first.
func (v SemVer) Compare(other SemVer) int {
	switch {
	case v.Major != other.Major:
		return cmpInt(v.Major, other.Major)
	case v.Minor != other.Minor:
		return cmpInt(v.Minor, other.Minor)
	default:
		return cmpInt(v.Patch, other.Patch)
	}
}

func (v SemVer) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsNewer reports whether remote is strictly greater than local.
func IsNewer(remote, local SemVer) bool {
	return remote.Compare(local) > 0
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

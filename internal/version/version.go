package version

import (
	"errors"
	"strings"

	"github.com/coreos/go-semver/semver"
)

// Result is the position of a candidate version relative to the running one.
type Result int

const (
	// Undefined means at least one of the versions couldn't be parsed.
	Undefined Result = iota

	// Older means the candidate is older than the running version.
	Older

	// Same means both versions sort equally.
	Same

	// Newer means the candidate is newer than the running version.
	Newer
)

func (r Result) String() string {
	switch r {
	case Older:
		return "older"
	case Same:
		return "same"
	case Newer:
		return "newer"
	default:
		return "undefined"
	}
}

// ErrUndefined is returned when a version string lacks the required separators.
var ErrUndefined = errors.New("version string needs at least two '-' separators")

// ID is a parsed version identifier.
//
// Two layouts are produced by the build tooling:
//   - CI builds: "<semver>-build-<timestamp>", e.g. "1.2.0-build-20240101".
//   - Local builds: "<git hash>-<timestamp>-local", e.g. "3f2a1c9-20240101T1200-local".
type ID struct {
	Raw       string
	Base      string
	Timestamp string
}

// Parse splits a version string into its comparison keys.
func Parse(s string) (ID, error) {
	tokens := strings.Split(s, "-")
	if len(tokens) < 3 {
		return ID{}, ErrUndefined
	}

	id := ID{
		Raw:  s,
		Base: tokens[0],
	}

	// The timestamp sits right after the base unless a tag comes first.
	if startsWithDigit(tokens[1]) {
		id.Timestamp = tokens[1]
	} else {
		id.Timestamp = tokens[2]
	}

	return id, nil
}

// IsLocal returns whether the version was produced by a local developer build.
func (id ID) IsLocal() bool {
	return strings.HasSuffix(id.Raw, "-local")
}

// IsBuild returns whether the version was produced by the release pipeline.
func (id ID) IsBuild() bool {
	return strings.Index(id.Raw, "-build") > 0
}

// Compare orders candidate against current.
//
// The build timestamps are compared lexically. A running local build is
// always replaced by a pipeline build. When timestamps are equal and both
// bases are semantic versions, the semantic version decides.
func Compare(current string, candidate string) Result {
	if current == candidate {
		_, err := Parse(current)
		if err != nil {
			return Undefined
		}

		return Same
	}

	cur, err := Parse(current)
	if err != nil {
		return Undefined
	}

	cand, err := Parse(candidate)
	if err != nil {
		return Undefined
	}

	// Development builds never block a release build.
	if cur.IsLocal() && cand.IsBuild() {
		return Newer
	}

	switch strings.Compare(cand.Timestamp, cur.Timestamp) {
	case 1:
		return Newer
	case -1:
		return Older
	default:
	}

	return compareBase(cur.Base, cand.Base)
}

// IsNewer returns whether candidate should replace current.
func IsNewer(current string, candidate string) bool {
	return Compare(current, candidate) == Newer
}

func compareBase(current string, candidate string) Result {
	curVer, err := semver.NewVersion(strings.TrimPrefix(current, "v"))
	if err != nil {
		return Same
	}

	candVer, err := semver.NewVersion(strings.TrimPrefix(candidate, "v"))
	if err != nil {
		return Same
	}

	switch candVer.Compare(*curVer) {
	case 1:
		return Newer
	case -1:
		return Older
	default:
		return Same
	}
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

package internal

import (
	"fmt"
	"strconv"
	"strings"
)

var (
	version    = "0.1.0"
	revision   = "HEAD"
	revisionAt = "now"
)

// Version returns the build version string.
func Version() string {
	return fmt.Sprintf("%s+%s.%s", version, revisionAt, revision)
}

// Semver is a parsed semantic version.
type Semver struct {
	major, minor, patch uint64
	preRelease          string
}

// Parse parses a semantic version string, tolerating omitted minor/patch
// parts. It returns nil when the string is not a version.
func Parse(vs string) *Semver {
	if p := strings.Index(vs, "+"); p >= 0 {
		vs = vs[:p] // build metadata is ignored
	}
	var pre string
	if p := strings.Index(vs, "-"); p >= 0 {
		vs, pre = vs[:p], vs[p+1:]
	}
	parts := strings.Split(vs, ".")
	if len(parts) == 0 || len(parts) > 3 {
		return nil
	}
	nums := make([]uint64, 3)
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil
		}
		nums[i] = n
	}
	return &Semver{major: nums[0], minor: nums[1], patch: nums[2], preRelease: pre}
}

// Compare returns -1, 0 or 1 as v is older than, equal to or newer than o.
// A pre-release sorts before its release; pre-release tags compare as
// strings.
func (v *Semver) Compare(o *Semver) int {
	if c := compareUint64(v.major, o.major); c != 0 {
		return c
	}
	if c := compareUint64(v.minor, o.minor); c != 0 {
		return c
	}
	if c := compareUint64(v.patch, o.patch); c != 0 {
		return c
	}
	if v.preRelease == o.preRelease {
		return 0
	}
	if v.preRelease == "" {
		return 1
	}
	if o.preRelease == "" {
		return -1
	}
	if v.preRelease < o.preRelease {
		return -1
	}
	return 1
}

func (v *Semver) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
	if v.preRelease != "" {
		s += "-" + v.preRelease
	}
	return s
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

package version

import (
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Compare orders two version strings, returning -1, 0 or 1 when a is older
// than, equal to, or newer than b.
//
// When both sides parse as semantic versions the comparison is numeric per
// component (major, then minor, then patch), so "1.10.0" sorts after
// "1.9.0". When either side fails to parse, both are compared as plain
// strings, case-insensitively. Release feeds occasionally carry tags like
// "beta-build-7" and the string fallback keeps ordering stable for them
// rather than pinning unparseable tags to one end of the order.
func Compare(a, b string) int {
	av, aerr := goversion.NewVersion(a)
	bv, berr := goversion.NewVersion(b)

	if aerr == nil && berr == nil {
		return av.Compare(bv)
	}

	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// IsNewer reports whether candidate is strictly newer than current.
func IsNewer(candidate, current string) bool {
	return Compare(candidate, current) > 0
}

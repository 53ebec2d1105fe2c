package store

import "regexp"

// digestPattern matches algorithm:hex, e.g. "sha256:abcd...". A reference
// that fails this match is a tag name, not a digest.
var digestPattern = regexp.MustCompile(`^[A-Za-z0-9_+.-]+:[A-Fa-f0-9]+$`)

func isDigest(reference string) bool {
	return digestPattern.MatchString(reference)
}

// IsDigest reports whether reference matches the <algorithm>:<hex> digest
// format, as opposed to being a tag name.
func IsDigest(reference string) bool {
	return isDigest(reference)
}

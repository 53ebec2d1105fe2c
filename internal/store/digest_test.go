package store

import "testing"

func TestIsDigest(t *testing.T) {
	cases := map[string]bool{
		"sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855": true,
		"latest":      false,
		"v1.2.3":      false,
		"sha256:":     false,
		"sha256:XYZ":  false,
	}

	for input, want := range cases {
		if got := IsDigest(input); got != want {
			t.Errorf("IsDigest(%q) = %v, want %v", input, got, want)
		}
	}
}

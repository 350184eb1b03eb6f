package textutil

import "testing"

func TestSanitizeToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"mira", "mira"},
		{"Mira Holo", "mira_holo"},
		{"studio-7", "studio-7"},
		{"../../etc", "etc"},
		{"", "unknown"},
		{"///", "unknown"},
	}
	for _, tc := range cases {
		if got := SanitizeToken(tc.in); got != tc.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

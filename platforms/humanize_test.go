package platforms

import "testing"

func TestParseViewerCount(t *testing.T) {
	cases := map[string]uint32{
		"1,234": 1234,
		"1.2k":  1200,
		"3m":    3_000_000,
		"":      0,
		"abc":   0,
		"  42 ": 42,
		"3M":    3_000_000,
	}
	for in, want := range cases {
		if got := ParseViewerCount(in); got != want {
			t.Errorf("ParseViewerCount(%q) = %d, want %d", in, got, want)
		}
	}
}

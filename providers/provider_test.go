package providers

import "testing"

func TestNormalizeID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2306.02437", "2306.02437"},
		{"2306.02437v1", "2306.02437"},
		{"2306.02437v12", "2306.02437"},
		{" 2306.02437v2 ", "2306.02437"},
		{"hep-th/9901001v1", "hep-th/9901001"},
		{"hep-th/9901001", "hep-th/9901001"},
		// 'v' not followed by digits is part of the ID.
		{"2306.02437v", "2306.02437v"},
		{"survey", "survey"},
		{"vector", "vector"},
	}
	for _, tc := range cases {
		if got := NormalizeID(tc.in); got != tc.want {
			t.Errorf("NormalizeID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeID(t *testing.T) {
	if got := SanitizeID("hep-th/9901001v1"); got != "hep-th_9901001" {
		t.Fatalf("SanitizeID = %q, want hep-th_9901001", got)
	}
	if got := SanitizeID("2306.02437v2"); got != "2306.02437" {
		t.Fatalf("SanitizeID = %q, want 2306.02437", got)
	}
}

package chem

import "testing"

func TestNormalizeSymbol(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"C", "C"},
		{"c", "C"},
		{"CA", "Ca"},
		{"CL", "Cl"},
		{"Fe", "Fe"},
		{"zn", "Zn"},
	}
	for _, tc := range cases {
		if got := NormalizeSymbol(tc.in); got != tc.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeCounts_MergesCollapsedBuckets(t *testing.T) {
	if NormalizeCounts(nil) != nil {
		t.Fatal("nil input should stay nil")
	}

	got := NormalizeCounts(map[string]int{
		"CA": 2,
		"Ca": 3,
		"H":  7,
	})
	if got["Ca"] != 5 {
		t.Fatalf("expected merged Ca bucket of 5, got %d", got["Ca"])
	}
	if got["H"] != 7 {
		t.Fatalf("H bucket wrong: %d", got["H"])
	}
	if _, ok := got["CA"]; ok {
		t.Fatal("uppercase bucket should be gone after normalization")
	}
}

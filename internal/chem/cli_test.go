package chem

import (
	"context"
	"strings"
	"testing"
)

func TestParseFlags(t *testing.T) {
	flags := parseFlags(ParseOptions{ReadHetatm: true, PermissiveTypes: true})
	joined := strings.Join(flags, " ")
	for _, want := range []string{
		"--read-hetatm=true",
		"--ignore-water=false",
		"--permissive-types=true",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("flags missing %q: %v", want, flags)
		}
	}
}

func TestCLIEngine_MissingBinary(t *testing.T) {
	e := NewCLIEngine("/nonexistent/chargefw2")
	ctx := context.Background()

	if _, err := e.Parse(ctx, "f.sdf", ParseOptions{}); err == nil {
		t.Fatal("Parse should fail without the binary")
	}
	if _, err := e.AvailableMethods(ctx); err == nil {
		t.Fatal("AvailableMethods should fail without the binary")
	}
	if _, err := e.Calculate(ctx, &MoleculeSet{Source: "f.sdf"}, "eem", nil); err == nil {
		t.Fatal("Calculate should fail without the binary")
	}
}

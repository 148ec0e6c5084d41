package chem

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// symbolCaser title-cases element symbols. PDB element columns are uppercase
// ("CA", "CL"); parameter sets and the stats histogram use standard symbols
// ("Ca", "Cl").
var symbolCaser = cases.Title(language.Und)

// NormalizeSymbol converts an element symbol to its canonical form:
// first letter upper, remainder lower. Unknown or empty input is returned
// title-cased as-is; validation against the periodic table is the engine's
// job, not ours.
func NormalizeSymbol(s string) string {
	if s == "" {
		return s
	}
	return symbolCaser.String(s)
}

// NormalizeCounts returns a copy of the histogram with all symbols
// normalized, merging buckets that collapse to the same canonical symbol.
func NormalizeCounts(counts map[string]int) map[string]int {
	if counts == nil {
		return nil
	}
	out := make(map[string]int, len(counts))
	for sym, n := range counts {
		out[NormalizeSymbol(sym)] += n
	}
	return out
}

// Package chem defines the contract to the external charge-calculation
// engine and the value types it produces. The engine is a synchronous,
// CPU-bound collaborator: it parses molecular structure files (SDF, MOL2,
// PDB, mmCIF), reports which empirical methods apply to a parsed set, and
// computes per-atom partial charges.
//
// The production implementation shells out to the chargefw2 command line
// tool (see cli.go); tests substitute counting fakes.
package chem

import "context"

// ParseOptions controls how structure files are read.
type ParseOptions struct {
	// ReadHetatm includes HETATM records from PDB/mmCIF files.
	ReadHetatm bool
	// IgnoreWater discards water molecules from PDB/mmCIF files.
	IgnoreWater bool
	// PermissiveTypes falls back to plain element symbols when exact atom
	// types are not covered by a parameter set.
	PermissiveTypes bool
}

// Charges maps a molecule name to its per-atom partial charges, in file
// atom order.
type Charges map[string][]float64

// MoleculeSet is a parsed structure file plus summary statistics. It is an
// in-memory value only; parsed molecule data is never persisted (only derived
// charge results are cached, one layer up).
type MoleculeSet struct {
	// Source is the path of the file the set was parsed from. The engine
	// re-reads it for calculation.
	Source string
	// Options are the parse options the set was loaded with.
	Options ParseOptions
	// Names lists molecule names in file order.
	Names []string
	// TotalAtoms is the atom count over all molecules.
	TotalAtoms int
	// AtomCounts is the atom-type histogram, keyed by normalized element
	// symbol ("Ca", not "CA").
	AtomCounts map[string]int
}

// Suitability pairs a method with the parameter sets applicable to a given
// molecule set. Parameters is empty for parameter-free methods.
type Suitability struct {
	Method     string   `json:"method"`
	Parameters []string `json:"parameters"`
}

// Engine is the charge-calculation capability consumed by the service layer.
// Implementations must be safe for concurrent use; every call may run on a
// different goroutine. Callers bound concurrency themselves.
type Engine interface {
	// Parse loads molecules from a structure file. It fails on malformed
	// input, unsupported formats, and files containing zero molecules.
	Parse(ctx context.Context, path string, opts ParseOptions) (*MoleculeSet, error)

	// AvailableMethods lists all method identifiers the engine supports.
	AvailableMethods(ctx context.Context) ([]string, error)

	// AvailableParameters lists the parameter sets published for a method.
	AvailableParameters(ctx context.Context, method string) ([]string, error)

	// SuitableMethods reports the (method, parameter sets) pairs valid for
	// the given molecule set.
	SuitableMethods(ctx context.Context, ms *MoleculeSet) ([]Suitability, error)

	// Calculate computes per-atom charges for every molecule in the set
	// using the given method and optional parameter set.
	Calculate(ctx context.Context, ms *MoleculeSet, method string, parameters *string) (Charges, error)
}

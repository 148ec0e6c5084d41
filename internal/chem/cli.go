// chargefw2 CLI adapter.
//
// This file implements Engine on top of the chargefw2 command line tool.
// Each operation is one subprocess invocation with JSON output on stdout:
//
//	chargefw2 info     --input-file f.sdf [flags]         -> molecule stats
//	chargefw2 methods                                      -> method list
//	chargefw2 parameters --method eem                      -> parameter list
//	chargefw2 suitable --input-file f.sdf [flags]          -> suitability pairs
//	chargefw2 charges  --input-file f.sdf --method eem ... -> charges per molecule
//
// The adapter keeps no state beyond the binary path; all concurrency control
// lives in the calling service.
package chem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// CLIEngine runs the chargefw2 binary. The zero value is not usable; create
// instances with NewCLIEngine.
type CLIEngine struct {
	bin string
}

// NewCLIEngine returns an Engine backed by the chargefw2 binary at path.
func NewCLIEngine(path string) *CLIEngine {
	return &CLIEngine{bin: path}
}

// cliInfo mirrors the JSON emitted by "chargefw2 info".
type cliInfo struct {
	Molecules  []string       `json:"molecules"`
	TotalAtoms int            `json:"total_atoms"`
	AtomCounts map[string]int `json:"atom_counts"`
}

// run executes one chargefw2 invocation and decodes its stdout into out.
// Stderr is included in the returned error because chargefw2 prints its
// diagnostics there.
func (e *CLIEngine) run(ctx context.Context, out any, args ...string) error {
	cmd := exec.CommandContext(ctx, e.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := bytes.TrimSpace(stderr.Bytes())
		if len(msg) > 0 {
			return fmt.Errorf("chargefw2 %s: %s: %w", args[0], msg, err)
		}
		return fmt.Errorf("chargefw2 %s: %w", args[0], err)
	}
	if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
		return fmt.Errorf("chargefw2 %s: decoding output: %w", args[0], err)
	}
	return nil
}

// parseFlags converts ParseOptions to chargefw2 CLI flags.
func parseFlags(opts ParseOptions) []string {
	flags := []string{
		fmt.Sprintf("--read-hetatm=%t", opts.ReadHetatm),
		fmt.Sprintf("--ignore-water=%t", opts.IgnoreWater),
		fmt.Sprintf("--permissive-types=%t", opts.PermissiveTypes),
	}
	return flags
}

// Parse implements Engine.
func (e *CLIEngine) Parse(ctx context.Context, path string, opts ParseOptions) (*MoleculeSet, error) {
	args := append([]string{"info", "--input-file", path}, parseFlags(opts)...)
	var info cliInfo
	if err := e.run(ctx, &info, args...); err != nil {
		return nil, err
	}
	if len(info.Molecules) == 0 {
		return nil, fmt.Errorf("no molecules parsed from %s", path)
	}
	return &MoleculeSet{
		Source:     path,
		Options:    opts,
		Names:      info.Molecules,
		TotalAtoms: info.TotalAtoms,
		AtomCounts: NormalizeCounts(info.AtomCounts),
	}, nil
}

// AvailableMethods implements Engine.
func (e *CLIEngine) AvailableMethods(ctx context.Context) ([]string, error) {
	var methods []string
	if err := e.run(ctx, &methods, "methods"); err != nil {
		return nil, err
	}
	return methods, nil
}

// AvailableParameters implements Engine.
func (e *CLIEngine) AvailableParameters(ctx context.Context, method string) ([]string, error) {
	var params []string
	if err := e.run(ctx, &params, "parameters", "--method", method); err != nil {
		return nil, err
	}
	return params, nil
}

// SuitableMethods implements Engine.
func (e *CLIEngine) SuitableMethods(ctx context.Context, ms *MoleculeSet) ([]Suitability, error) {
	args := append([]string{"suitable", "--input-file", ms.Source}, parseFlags(ms.Options)...)
	var pairs []Suitability
	if err := e.run(ctx, &pairs, args...); err != nil {
		return nil, err
	}
	return pairs, nil
}

// Calculate implements Engine.
func (e *CLIEngine) Calculate(ctx context.Context, ms *MoleculeSet, method string, parameters *string) (Charges, error) {
	args := append([]string{"charges", "--input-file", ms.Source, "--method", method}, parseFlags(ms.Options)...)
	if parameters != nil {
		args = append(args, "--parameters", *parameters)
	}
	var charges Charges
	if err := e.run(ctx, &charges, args...); err != nil {
		return nil, err
	}
	if len(charges) == 0 {
		return nil, fmt.Errorf("method %s produced no charges for %s", method, ms.Source)
	}
	return charges, nil
}

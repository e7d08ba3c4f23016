// Package dsym implements the post-processing steps that run once a
// Mach-O rebuild has succeeded: dSYM generation, the DBGOriginalUUID
// map that lets the dSYM resolve back to the bitcode-era UUIDs,
// symbol-map application, and the final strip pass.
package dsym

import (
	"github.com/appstore-toolchain/bitcode-rebuild/internal/env"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/toolcmd"
)

// Generate runs `dsymutil <input> -o <dsymOutput>`.
func Generate(e *env.ToolEnv, input, dsymOutput string) error {
	_, err := toolcmd.Dsymutil(e, input, dsymOutput, "")
	return err
}

// ApplySymbolMap runs `dsymutil --symbol-map <symbolMapPath>
// <dsymOutput>`.
func ApplySymbolMap(e *env.ToolEnv, dsymOutput, symbolMapPath string) error {
	_, err := toolcmd.DsymMap(e, dsymOutput, symbolMapPath, "")
	return err
}

// Strip runs the final strip pass over the installed output: the full
// symbol strip for an executable, or the debug-only strip (optionally
// also removing Swift reflection metadata) for a dylib/bundle.
func Strip(e *env.ToolEnv, output string, isExecutable, stripSwiftSymbols bool) error {
	if isExecutable {
		_, err := toolcmd.StripSymbols(e, output, "")
		return err
	}
	_, err := toolcmd.StripDebug(e, output, stripSwiftSymbols, "")
	return err
}

// AnySliceContainsSymbols reports whether at least one rebuilt slice
// kept its symbols, used to warn when a requested dSYM would carry no
// useful debug information.
func AnySliceContainsSymbols(containsSymbols []bool) bool {
	for _, c := range containsSymbols {
		if c {
			return true
		}
	}
	return false
}

// Package verify implements the per-tool option verifiers:
// whitelist-based checkers that reject a reconstructed argv before it
// is ever handed to clang, swiftc, or ld. Verification is a small
// sequential scanner over the whitelist table rather than a general
// flag parser, so that option arguments shaped like another flag (for
// example -mllvm's value -fast-isel=0) are consumed as the value they
// are instead of being misclassified as a second flag.
package verify

import (
	"fmt"
)

// OptionSpec describes one recognized flag: how many following tokens
// it consumes as its value(s) (0 for a boolean flag), and, if Choices
// is non-empty, the closed set of values it accepts.
type OptionSpec struct {
	Arity    int
	Choices  []string
	Required bool
}

// OptionVerifier checks a reconstructed argv against a whitelist of
// recognized flags. It has no notion of positional arguments: every
// token must either be a known flag or a value consumed by the
// preceding flag's arity.
type OptionVerifier struct {
	Prog    string
	Options map[string]OptionSpec
}

// NewOptionVerifier builds a verifier for prog (used only in error
// messages) from a whitelist of recognized options.
func NewOptionVerifier(prog string, options map[string]OptionSpec) *OptionVerifier {
	return &OptionVerifier{Prog: prog, Options: options}
}

// Verify reports whether args consists entirely of whitelisted flags
// (with values of the right arity and, where constrained, the right
// choice), and that every Required flag is present. On failure it
// returns a human-readable reason naming the offending argument.
func (v *OptionVerifier) Verify(args []string) (bool, string) {
	seen := make(map[string]bool, len(args))
	i := 0
	for i < len(args) {
		tok := args[i]
		spec, ok := v.Options[tok]
		if !ok {
			return false, fmt.Sprintf("%s: unrecognized option %q", v.Prog, tok)
		}
		seen[tok] = true
		i++
		for j := 0; j < spec.Arity; j++ {
			if i >= len(args) {
				return false, fmt.Sprintf("%s: option %q expects a value", v.Prog, tok)
			}
			val := args[i]
			if len(spec.Choices) > 0 && !containsString(spec.Choices, val) {
				return false, fmt.Sprintf("%s: option %q does not accept value %q", v.Prog, tok, val)
			}
			i++
		}
	}
	for name, spec := range v.Options {
		if spec.Required && !seen[name] {
			return false, fmt.Sprintf("%s: missing required option %q", v.Prog, name)
		}
	}
	return true, ""
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

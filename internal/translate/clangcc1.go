// Package translate implements compiler-argument reconstruction and
// compatibility translation: the clang -cc1 upgrade
// path, the Swift-to-clang cross-frontend rewrite, triple retargeting
// for the armv7k -> arm64_32 watch migration, and system-library
// upgrades.
package translate

import "strings"

// clangArgMap renames clang -cc1 argument spellings that changed
// between toolchain generations.
var clangArgMap = map[string]string{
	"apcs-vfp": "aapcs16",
}

// clangToOptimized maps a disabled-optimization flag to its forced
// replacement, used when a bitcode bundle must be recompiled at -O1
// regardless of what it originally requested.
var clangToOptimized = map[string]string{
	"-disable-llvm-optzns": "-O1",
	"-disable-llvm-passes": "-O1",
	"-O0":                  "-O1",
}

// ClangCC1Upgrade renames any argument spelling in clangArgMap and
// appends arch's compatibility flags. Upgrade is idempotent: none of
// the clangArgMap keys appear in its own values, and the compatibility
// flags are only appended when not already present, so re-upgrading
// already-upgraded argv is a no-op.
func ClangCC1Upgrade(opts []string, arch string) []string {
	out := make([]string, 0, len(opts)+4)
	for _, opt := range opts {
		if renamed, ok := clangArgMap[opt]; ok {
			out = append(out, renamed)
		} else {
			out = append(out, opt)
		}
	}
	return appendIfAbsent(out, ClangCompatibilityFlags(arch)...)
}

// ClangCompatibilityFlags returns the extra -mllvm flags a 32-bit arm
// target needs for bitcode-compatible codegen.
func ClangCompatibilityFlags(arch string) []string {
	if strings.HasPrefix(arch, "armv7") {
		return []string{"-mllvm", "-arm-bitcode-compatibility", "-mllvm", "-fast-isel=0"}
	}
	return nil
}

// ClangAppendTranslateArgs appends the watch-retargeting marker flag,
// unless it is already present.
func ClangAppendTranslateArgs(opts []string) []string {
	return appendIfAbsent(opts, "-mllvm", "-aarch64-watch-bitcode-compatibility")
}

// appendIfAbsent appends extra to opts unless extra already occurs
// as a contiguous run somewhere in opts, which keeps the flag-append
// steps in this package idempotent under re-application.
func appendIfAbsent(opts []string, extra ...string) []string {
	if len(extra) == 0 || containsSequence(opts, extra) {
		return opts
	}
	return append(opts, extra...)
}

func containsSequence(haystack, needle []string) bool {
	if len(needle) == 0 || len(haystack) < len(needle) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// ClangAddOptimization forces every disabled-optimization flag in opts
// to -O1. This is the retry-path rewrite.
func ClangAddOptimization(opts []string) []string {
	out := make([]string, len(opts))
	for i, opt := range opts {
		if replacement, ok := clangToOptimized[opt]; ok {
			out[i] = replacement
		} else {
			out[i] = opt
		}
	}
	return out
}

// ClangTranslateTriple rewrites an armv7k/thumbv7k triple fragment to
// arm64_32 and "aapcs16" to "darwinpcs" wherever they appear as a whole
// argument or a prefix of one, then appends the watch-compatibility
// marker unless it is already present. Every armv7k/thumbv7k occurrence
// is rewritten in one pass, so applying it again is a no-op on its own
// output.
func ClangTranslateTriple(opts []string) []string {
	out := make([]string, 0, len(opts))
	for _, opt := range opts {
		switch {
		case opt == "aapcs16":
			out = append(out, "darwinpcs")
		case strings.HasPrefix(opt, "thumbv7k"):
			out = append(out, strings.Replace(opt, "thumbv7k", "arm64_32", 1))
		case strings.HasPrefix(opt, "armv7k"):
			out = append(out, strings.Replace(opt, "armv7k", "arm64_32", 1))
		default:
			out = append(out, opt)
		}
	}
	return ClangAppendTranslateArgs(out)
}

package translate

import "strings"

// swiftToClang maps a swiftc -frontend flag to its clang -cc1
// equivalent, used when a bitcode bundle's embedded Swift frontend
// invocation must be recompiled through clang instead of swiftc.
var swiftToClang = map[string]string{
	"-frontend":     "-cc1",
	"-emit-object":  "-emit-obj",
	"-target":       "-triple",
	"-Xllvm":        "-mllvm",
	"-Onone":        "-O0",
	"-Oplayground":  "-O1",
	"-Osize":        "-Oz",
	"-Ounchecked":   "-Os",
	"-O":            "-Os",
	"-module-name":  "-main-file-name",
	"-parse-stdlib": "-stdlib=libc++",
}

// swiftToOptimized maps a disabled-optimization Swift flag to -O.
var swiftToOptimized = map[string]string{
	"-disable-llvm-optzns": "-O",
	"-disable-llvm-passes": "-O",
	"-Onone":               "-O",
}

// SwiftUpgrade appends arch's compatibility flags to opts, unless
// already present. Unlike ClangCC1Upgrade there is no argument
// renaming at this stage: Swift's own flag spellings are stable across
// the toolchain generations this engine targets.
func SwiftUpgrade(opts []string, arch string) []string {
	return appendIfAbsent(append([]string(nil), opts...), SwiftCompatibilityFlags(arch)...)
}

// SwiftCompatibilityFlags mirrors ClangCompatibilityFlags for the
// Swift frontend's own -Xllvm spelling.
func SwiftCompatibilityFlags(arch string) []string {
	if strings.HasPrefix(arch, "armv7") {
		return []string{"-Xllvm", "-arm-bitcode-compatibility", "-Xllvm", "-fast-isel=0"}
	}
	return nil
}

// SwiftTranslateToClang is the total cross-frontend rewrite: every
// argument in opts is replaced by its clang equivalent where one
// exists in swiftToClang, and left untouched otherwise. "Total"
// meaning every key the Swift frontend can emit for these flags has an
// entry (a total Swift -> clang translation); an argument
// with no entry is assumed to already be clang-legal (e.g. -triple
// values, -main-file-name values) and passes through unchanged.
func SwiftTranslateToClang(opts []string) []string {
	out := make([]string, len(opts))
	for i, opt := range opts {
		if replacement, ok := swiftToClang[opt]; ok {
			out[i] = replacement
		} else {
			out[i] = opt
		}
	}
	return out
}

// SwiftAddOptimization forces every disabled-optimization flag in opts
// to -O (the Swift-path equivalent of the retry-on-failure rewrite).
func SwiftAddOptimization(opts []string) []string {
	out := make([]string, len(opts))
	for i, opt := range opts {
		if replacement, ok := swiftToOptimized[opt]; ok {
			out[i] = replacement
		} else {
			out[i] = opt
		}
	}
	return out
}

// SwiftAppendTranslateArgs appends the watch-retargeting marker in the
// Swift frontend's own flag spelling, unless already present.
func SwiftAppendTranslateArgs(opts []string) []string {
	return appendIfAbsent(opts, "-Xllvm", "-aarch64-watch-bitcode-compatibility")
}

// SwiftTranslateTriple is the Swift-frontend counterpart to
// ClangTranslateTriple: same armv7k/thumbv7k -> arm64_32 and aapcs16 ->
// darwinpcs rewrite, then the Swift-spelled compatibility marker.
func SwiftTranslateTriple(opts []string) []string {
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
	return SwiftAppendTranslateArgs(out)
}

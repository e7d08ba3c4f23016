// Package env implements the Tool Environment: the
// process-wide, per-run state that resolves tool paths, tracks the
// active platform/SDK, resolves dylibs, and owns the scratch-directory
// and worker-pool lifecycle.
package env

// BuildConfig holds the immutable settings for one rebuild run.
// It is parsed once from CLI flags in cmd/bitcode-rebuild
// and then threaded explicitly through every component rather than
// held in a global.
type BuildConfig struct {
	// OutputPath is where the final (possibly fat) Mach-O is written.
	OutputPath string

	// ExtraToolPaths are searched, in order, before the platform SDK
	// locator fallback.
	ExtraToolPaths []string

	// ExtraLibrarySearchPaths (-L) are searched before the toolchain
	// and SDK default library directories.
	ExtraLibrarySearchPaths []string

	// SDKPathOverride, if set, is used instead of asking the platform
	// SDK locator.
	SDKPathOverride string

	// LibraryListPath is an optional file of one absolute library path
	// per line, consulted by basename before any other dylib search
	// path.
	LibraryListPath string

	// SymbolMapPath is a .bcsymbolmap file or a directory of them, used
	// by the Deobfuscator. Only valid together with DsymOutputPath.
	SymbolMapPath string

	// DsymOutputPath, if set, requests dSYM generation after a
	// successful rebuild.
	DsymOutputPath string

	// StripSwiftSymbols requests "-STx" instead of "-Sx" when stripping
	// a non-executable output.
	StripSwiftSymbols bool

	// VerifyOnly runs the whole pipeline (argument verification,
	// archive extraction, info-only subprocesses) without actually
	// compiling or linking.
	VerifyOnly bool

	// SaveTemps keeps scratch directories around after the run instead
	// of removing them during cleanup.
	SaveTemps bool

	// TranslateWatchOS enables the armv7k -> arm64_32 retargeting mode.
	TranslateWatchOS bool

	// CompileSwiftAsC forces Swift bitcode to be recompiled through the
	// C frontend (cross-frontend translation) rather than swiftc.
	CompileSwiftAsC bool

	// ForceOptimizeSwift is normally only set internally by the retry
	// path, but is exposed here too so callers such as tests can set it
	// directly; every Bundle.Run then starts with it on. No command-line
	// flag sets it.
	ForceOptimizeSwift bool

	// Verbose enables debug-level internal logging.
	Verbose bool

	// Workers is the worker-pool width for parallel compile jobs.
	Workers int

	// AltLTOLibraryPath overrides the default libLTO.dylib used for LTO
	// codegen.
	AltLTOLibraryPath string
}

// workers returns a sane default pool width when unset.
func (c *BuildConfig) workers() int {
	if c.Workers <= 0 {
		return 1
	}
	return c.Workers
}

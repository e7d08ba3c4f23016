package bundle

import (
	"github.com/appstore-toolchain/bitcode-rebuild/internal/diag"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/env"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/xar"
)

// State is a BundleRun's position in its lifecycle:
// New -> Extracted -> Compiled -> Linked (terminal success), or Failed
// (terminal), or, from Failed exactly once, Retrying -> ... Retrying is
// entered only once per logical bundle.
type State int

const (
	StateNew State = iota
	StateExtracted
	StateCompiled
	StateLinked
	StateFailed
	StateRetrying
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateExtracted:
		return "Extracted"
	case StateCompiled:
		return "Compiled"
	case StateLinked:
		return "Linked"
	case StateFailed:
		return "Failed"
	case StateRetrying:
		return "Retrying"
	default:
		return "Unknown"
	}
}

// Bundle is one BundleRun: the rebuild of a single architecture slice's
// embedded bitcode archive, for either the top-level input or a nested
// Bundle TOC entry. State is threaded explicitly through the engine
// as a Go value rather than held as hidden instance state.
type Bundle struct {
	Input  string // path to the XAR archive on disk
	Output string // path this bundle's linked object will be written to
	Arch   string // the (possibly retargeted) architecture being built

	State State

	archive *xar.Archive

	IsExecutable     bool
	DeploymentTarget string
	SwiftAsyncPatch  bool
	ContainsSwift    bool

	ForceOptimizeSwift bool
	CompileSwiftAsC    bool

	retried bool
}

// New constructs a fresh, unstarted Bundle for one architecture's
// archive. output is the path the linked object will be written to;
// callers (the command-line driver, once per architecture slice, or a
// nested-bundle compile job) choose it.
func New(input, output, arch string) *Bundle {
	return &Bundle{Input: input, Output: output, Arch: arch, State: StateNew}
}

// Run drives a Bundle through extraction, compilation, and linking, and
// performs the single permitted Swift-failure retry (step
// 6). It is the entry point used both for the top-level input and for
// nested Bundle TOC entries.
func (b *Bundle) Run(e *env.ToolEnv) error {
	if e.Config.CompileSwiftAsC {
		b.CompileSwiftAsC = true
	}
	if e.Config.ForceOptimizeSwift {
		b.ForceOptimizeSwift = true
	}
	if err := b.run(e); err != nil {
		if !b.eligibleForRetry() {
			b.State = StateFailed
			return err
		}
		e.Log.Warning("link failed for %s, retrying with forced Swift optimization", b.Input)
		b.State = StateRetrying
		b.retried = true
		b.ForceOptimizeSwift = true
		if b.isTranslateWatchOS(e) {
			b.CompileSwiftAsC = true
		}
		if retryErr := b.run(e); retryErr != nil {
			b.State = StateFailed
			return retryErr
		}
	}
	return nil
}

// eligibleForRetry reports whether this bundle's failure may trigger
// the one-shot Swift retry: it must contain Swift bitcode, must not
// already have force_optimize_swift set, and must not have already
// retried once.
func (b *Bundle) eligibleForRetry() bool {
	return b.ContainsSwift && !b.ForceOptimizeSwift && !b.retried
}

// run performs one end-to-end attempt: extract, reconstruct link
// options, build and run compile jobs, assemble and run the final
// link. It does not itself implement the retry; Run wraps it.
func (b *Bundle) run(e *env.ToolEnv) error {
	archive, err := xar.Open(e, b.Input)
	if err != nil {
		return err
	}
	b.archive = archive
	b.State = StateExtracted

	if err := b.applyHeader(e); err != nil {
		return err
	}

	linkOpts, err := b.buildLinkOptions(e)
	if err != nil {
		return err
	}

	inputs, err := b.runCompileJobs(e)
	if err != nil {
		return err
	}
	b.State = StateCompiled

	if err := b.link(e, linkOpts, inputs); err != nil {
		return err
	}
	b.State = StateLinked
	return nil
}

// applyHeader reads subdoc/platform and subdoc/version, sets the
// process-wide platform and validates the bundle format version, and
// retargets arch from armv7k to arm64_32 when translate-watchos applies
// (the header-application step).
func (b *Bundle) applyHeader(e *env.ToolEnv) error {
	platform := env.Platform(b.archive.Subdoc.Platform)
	if platform != "" {
		if err := e.SetPlatform(platform); err != nil {
			return err
		}
	}

	version := b.archive.Subdoc.Version
	if version != "" && !env.SupportedBundleVersions[version] {
		return diag.New(diag.BundleVersionUnsupported, "unsupported bundle version %q in %s", version, b.Input)
	}

	if b.isTranslateWatchOS(e) && b.Arch == "armv7k" {
		b.Arch = "arm64_32"
	}
	return nil
}

// ContainsSymbols reports whether this bundle's subdoc requests that
// its symbols be kept (the subdoc hide-symbols flag), used by the
// dSYM generation step to decide whether a requested dSYM would carry
// any useful debug information.
func (b *Bundle) ContainsSymbols() bool {
	return b.archive.Subdoc.ContainsSymbols()
}

// isTranslateWatchOS reports whether the armv7k -> arm64_32 retargeting
// mode is active for this bundle: the engine was invoked with
// --translate-watchos and the bundle's own platform is the watch
// platform.
func (b *Bundle) isTranslateWatchOS(e *env.ToolEnv) bool {
	if !e.Config.TranslateWatchOS {
		return false
	}
	platform, ok := e.Platform()
	return ok && platform.IsWatch()
}

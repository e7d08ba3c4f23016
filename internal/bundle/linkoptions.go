// Package bundle rebuilds one Mach-O architecture slice's embedded
// bitcode XAR into a native object and links it, recursing into any
// nested bundles it references, wiring the verify/translate/env/
// toolcmd packages together to do it.
package bundle

import (
	"strconv"
	"strings"

	"github.com/appstore-toolchain/bitcode-rebuild/internal/diag"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/env"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/verify"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/xar"
)

// legacyEntryPointLibrary is the logical dylib name resolved when the
// watch entry-point migration applies (see DESIGN.md note (b)). Its
// exact name is not fixed by any external contract; this repo
// resolves it like any other {SDKPATH}-prefixed dylib and treats its
// absence as non-fatal, since old toolchains that predate this
// migration may not ship it.
const legacyEntryPointLibrary = "{SDKPATH}/usr/lib/libWKExtensionMainLegacy.a"

// swiftAsyncPatchSDKThreshold is the per-platform SDK version below
// which the Swift-async backward-deployment rpath patch applies
// (link-option reconstruction).
var swiftAsyncPatchSDKThreshold = map[env.Platform]string{
	env.PlatformIPhoneOS:  "15.2",
	env.PlatformIOS:       "15.2",
	env.PlatformAppleTVOS: "15.2",
	env.PlatformTVOS:      "15.2",
	env.PlatformWatchOS:   "8.3",
}

// buildLinkOptions reconstructs and validates the final -options list
// for the linker invocation: verify the bundle's raw <link-options>,
// detect -execute, patch a zero watchOS deployment target, append
// -syslibroot/-sdk_version, and apply three link-option fixups: the
// watch legacy-entry-point migration, the -sectalign argument-count
// fix, and the Swift-async rpath patch.
func (b *Bundle) buildLinkOptions(e *env.ToolEnv) ([]string, error) {
	raw := append([]string(nil), b.archive.Subdoc.LinkOptions.Option...)

	v := verify.NewLinkerVerifier()
	if ok, reason := v.Verify(raw); !ok {
		return nil, diag.New(diag.OptionRejected, "linker option verification failed for bundle %s (%s)", b.Input, reason)
	}

	for _, opt := range raw {
		if opt == "-execute" {
			b.IsExecutable = true
			break
		}
	}

	isTranslateWatch := b.isTranslateWatchOS(e)
	versionMinIdx := indexOf(raw, "-watchos_version_min")
	if versionMinIdx >= 0 && versionMinIdx < len(raw)-1 {
		if raw[versionMinIdx+1] == "0.0.0" {
			if isTranslateWatch {
				raw[versionMinIdx+1] = "5.0.0"
			} else {
				raw[versionMinIdx+1] = "2.0.0"
			}
		}
		b.DeploymentTarget = raw[versionMinIdx+1]
	} else if isTranslateWatch {
		raw = append(raw, "-watchos_version_min", "5.0.0")
	}

	if b.archive.Subdoc.Platform != "" && b.archive.Subdoc.Platform != "Unknown" {
		sdkPath, err := e.SDKPath()
		if err != nil {
			return nil, err
		}
		raw = append(raw, "-syslibroot", sdkPath)
	}
	if b.archive.Subdoc.SDKVersion != "" && b.archive.Subdoc.SDKVersion != "NA" {
		raw = append(raw, "-sdk_version", b.archive.Subdoc.SDKVersion)
	}

	raw, err := b.applyLegacyEntryPoint(e, raw)
	if err != nil {
		return nil, err
	}

	raw = fixSectalign(raw)

	b.SwiftAsyncPatch = swiftAsyncPatchRequired(e, b.archive.Subdoc)
	if b.SwiftAsyncPatch {
		raw = append(raw, "-rpath", "/usr/lib/swift")
	}

	return raw, nil
}

// applyLegacyEntryPoint implements the watchOS "WKExtensionMain"
// migration. It acts only on the watch platform, when an -e pair is
// present and the current SDK version can be read, and only when that
// SDK is at least 6.0 while the bundle was built against an SDK older
// than 6.0. An -e naming exactly _main is rewritten to
// _WKExtensionMain in place; any other entry is kept and an
// "-alias <entry> _WKExtensionMain" pair is appended. The legacy
// compatibility static library is appended only when it resolves and
// passes ValidateStaticArchive; a library that fails validation is
// logged as a warning and left out.
func (b *Bundle) applyLegacyEntryPoint(e *env.ToolEnv, raw []string) ([]string, error) {
	platform, ok := e.Platform()
	if !ok || !platform.IsWatch() {
		return raw, nil
	}
	eIdx := indexOf(raw, "-e")
	if eIdx < 0 || eIdx+1 >= len(raw) {
		return raw, nil
	}
	currentSDKVersion, err := e.SDKVersion()
	if err != nil {
		// Best-effort: an unparseable/unavailable current SDK version
		// disables the migration rather than failing the whole bundle.
		return raw, nil
	}
	if !(versionAtLeast(currentSDKVersion, "6.0") && versionLess(b.archive.Subdoc.SDKVersion, "6.0")) {
		return raw, nil
	}

	out := append([]string(nil), raw...)
	entry := out[eIdx+1]
	if entry == "_main" {
		out[eIdx+1] = "_WKExtensionMain"
	} else {
		out = append(out, "-alias", entry, "_WKExtensionMain")
	}
	if legacyLib, err := e.ResolveDylib(b.Arch, legacyEntryPointLibrary, true); err == nil && legacyLib != "" {
		if verr := env.ValidateStaticArchive(legacyLib); verr != nil {
			if e.Log != nil {
				e.Log.Warning("legacy entry-point library %s failed validation: %v", legacyLib, verr)
			}
		} else {
			out = append(out, legacyLib)
		}
	}
	return out, nil
}

// fixSectalign inserts the default alignment 0x4000 as -sectalign's
// third argument when it was omitted: -sectalign with only two
// arguments gains a third argument inserted right after them.
func fixSectalign(raw []string) []string {
	idx := indexOf(raw, "-sectalign")
	if idx < 0 || idx+2 >= len(raw) {
		return raw
	}
	if idx+3 < len(raw) && !strings.HasPrefix(raw[idx+3], "-") {
		return raw
	}
	out := append([]string(nil), raw[:idx+3]...)
	out = append(out, "0x4000")
	out = append(out, raw[idx+3:]...)
	return out
}

// swiftAsyncPatchRequired reports whether the Swift-async
// backward-deployment rpath patch applies: the bundle's original SDK
// is below the per-platform threshold AND its dylib list references
// the Swift Concurrency runtime.
func swiftAsyncPatchRequired(e *env.ToolEnv, subdoc xar.Subdoc) bool {
	if subdoc.Dylibs == nil {
		return false
	}
	referencesConcurrency := false
	for _, d := range subdoc.Dylibs.Entries {
		if strings.Contains(d.Path, "Concurrency") {
			referencesConcurrency = true
			break
		}
	}
	if !referencesConcurrency {
		return false
	}
	platform, ok := e.Platform()
	if !ok {
		return false
	}
	threshold, ok := swiftAsyncPatchSDKThreshold[platform]
	if !ok {
		return false
	}
	return versionLess(subdoc.SDKVersion, threshold)
}

func indexOf(haystack []string, needle string) int {
	for i, s := range haystack {
		if s == needle {
			return i
		}
	}
	return -1
}

// versionLess compares two dotted-integer version strings
// component-wise, treating a missing trailing component as 0 (so
// "6" < "6.0" is false: they compare equal).
func versionLess(a, b string) bool {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			return av < bv
		}
	}
	return false
}

func versionAtLeast(a, b string) bool {
	return !versionLess(a, b)
}

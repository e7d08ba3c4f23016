package env

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/appstore-toolchain/bitcode-rebuild/internal/cmdtool"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/diag"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/jobs"
)

// ToolEnv is the Tool Environment: the process-wide
// state shared by every BundleRun in a single invocation. It resolves
// tool paths, owns the platform state machine, and holds the worker
// pool, logger, and deobfuscator for the run. One ToolEnv is
// constructed in cmd/bitcode-rebuild and threaded explicitly through
// the bundle/macho layers, never read from a package global.
type ToolEnv struct {
	Config *BuildConfig
	Log    *diag.Logger
	Deobf  *diag.Deobfuscator
	Pool   *jobs.Pool
	Runner *cmdtool.Runner

	mu            sync.Mutex
	platform      Platform
	platformSet   bool
	sdkPath       string
	sdkVersion    string
	toolCache     map[string]string
	tempDirs      []string
	librarySearch []string
	linkerVersion *LinkerVersion
	clangRTCache  map[string]string
}

// NewToolEnv builds a ToolEnv from a parsed BuildConfig. The platform
// starts Unset; the first call to SetPlatform establishes it.
func NewToolEnv(cfg *BuildConfig, log *diag.Logger) *ToolEnv {
	runner := cmdtool.NewRunner(cfg.VerifyOnly, log)
	e := &ToolEnv{
		Config:        cfg,
		Log:           log,
		Pool:          jobs.NewPool(cfg.workers()),
		Runner:        runner,
		toolCache:     make(map[string]string),
		librarySearch: append([]string(nil), cfg.ExtraLibrarySearchPaths...),
	}
	if cfg.SymbolMapPath != "" {
		e.Deobf = diag.NewDeobfuscator(cfg.SymbolMapPath)
	}
	return e
}

// Platform reports the currently active platform and whether one has
// been set at all (the Unset state of the platform state machine).
func (e *ToolEnv) Platform() (Platform, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.platform, e.platformSet
}

// SetPlatform transitions the state machine. Setting the same platform
// twice is a no-op; setting a different platform flushes the resolved
// tool-path cache and the cached SDK path, since tool resolution and
// the SDK locator are platform-scoped; the flush is logged through
// the caller-supplied logger.
func (e *ToolEnv) SetPlatform(p Platform) error {
	if !p.valid() {
		return diag.New(diag.PlatformUnknown, "unknown platform %q", string(p))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.platformSet && e.platform == p {
		return nil
	}
	if e.platformSet && e.platform != p {
		if e.Log != nil {
			e.Log.Warning("platform changed from %s to %s, flushing tool cache", e.platform, p)
		}
		e.toolCache = make(map[string]string)
		e.sdkPath = ""
		e.sdkVersion = ""
		e.linkerVersion = nil
	}
	e.platform = p
	e.platformSet = true
	return nil
}

// requirePlatform returns PlatformUnset if SetPlatform has never been
// called: operations that need the platform
// before it is set fail with PlatformUnset.
func (e *ToolEnv) requirePlatform() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.platformSet {
		return diag.New(diag.PlatformUnset, "platform not set")
	}
	return nil
}

// SDKPath resolves (and caches) the active platform's SDK path, via
// Config.SDKPathOverride if set, else the `xcrun --sdk <name>
// --show-sdk-path` locator.
func (e *ToolEnv) SDKPath() (string, error) {
	if err := e.requirePlatform(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sdkPath != "" {
		return e.sdkPath, nil
	}
	if e.Config.SDKPathOverride != "" {
		e.sdkPath = e.Config.SDKPathOverride
		return e.sdkPath, nil
	}
	sdkName := platformSDKName[e.platform]
	out, _, err := e.Runner.Run([]string{"xcrun", "--sdk", sdkName, "--show-sdk-path"}, "")
	if err != nil {
		return "", diag.Wrap(diag.ToolNotFound, err, "locating SDK for platform %s", e.platform)
	}
	path := trimNewline(out)
	e.sdkPath = path
	return path, nil
}

// SDKVersion resolves (and caches) the active platform's SDK version
// number (as opposed to SDKPath's filesystem location), via `xcrun
// --sdk <name> --show-sdk-version`. This is the "current SDK" the
// watch legacy-entry-point check compares
// against a bundle's recorded original SDK version.
func (e *ToolEnv) SDKVersion() (string, error) {
	if err := e.requirePlatform(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sdkVersion != "" {
		return e.sdkVersion, nil
	}
	sdkName := platformSDKName[e.platform]
	out, _, err := e.Runner.Run([]string{"xcrun", "--sdk", sdkName, "--show-sdk-version"}, "")
	if err != nil {
		return "", diag.Wrap(diag.ToolNotFound, err, "locating SDK version for platform %s", e.platform)
	}
	e.sdkVersion = trimNewline(out)
	return e.sdkVersion, nil
}

// GetTool resolves name to an absolute path: cache, then each of
// Config.ExtraToolPaths in order, then `xcrun --sdk <platform> -f
// <name>` as the SDK-locator fallback.
func (e *ToolEnv) GetTool(name string) (string, error) {
	if err := e.requirePlatform(); err != nil {
		return "", err
	}
	e.mu.Lock()
	if cached, ok := e.toolCache[name]; ok {
		e.mu.Unlock()
		return cached, nil
	}
	searchPaths := append([]string(nil), e.Config.ExtraToolPaths...)
	platform := e.platform
	e.mu.Unlock()

	for _, dir := range searchPaths {
		candidate := filepath.Join(dir, name)
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			e.cacheTool(name, candidate)
			return candidate, nil
		}
	}

	sdkName := platformSDKName[platform]
	out, _, err := e.Runner.Run([]string{"xcrun", "--sdk", sdkName, "-f", name}, "")
	if err != nil {
		return "", diag.Wrap(diag.ToolNotFound, err, "locating tool %q for platform %s", name, platform)
	}
	resolved := trimNewline(out)
	e.cacheTool(name, resolved)
	return resolved, nil
}

// PlatformShortName returns the SDK-locator name for the active
// platform ("iphoneos", "watchos", ...).
func (e *ToolEnv) PlatformShortName() (string, error) {
	if err := e.requirePlatform(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return platformSDKName[e.platform], nil
}

// SetUUID points the deobfuscator at the .bcsymbolmap for this Mach-O
// slice's UUID before any error/warning referencing obfuscated symbols
// is logged.
func (e *ToolEnv) SetUUID(uuid string) {
	if e.Deobf != nil {
		e.Deobf.SelectUUID(uuid)
	}
}

func (e *ToolEnv) cacheTool(name, path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.toolCache[name] = path
}

// LibrarySearchPaths returns the configured -L search order, in the
// order they should be consulted (extras first, then toolchain/SDK
// defaults appended by the dylib resolver).
func (e *ToolEnv) LibrarySearchPaths() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.librarySearch...)
}

// CreateTempDir creates a fresh scratch directory under the system
// temp root, named after prefix, and tracks it for cleanup.
func (e *ToolEnv) CreateTempDir(prefix string) (string, error) {
	dir, err := os.MkdirTemp("", "bitcode-rebuild-"+prefix+"-")
	if err != nil {
		return "", diag.Wrap(diag.ToolRunFailed, err, "creating scratch directory")
	}
	e.mu.Lock()
	e.tempDirs = append(e.tempDirs, dir)
	e.mu.Unlock()
	return dir, nil
}

// Cleanup removes every scratch directory created during the run,
// unless Config.SaveTemps was set, in which case it logs their
// locations instead.
func (e *ToolEnv) Cleanup() {
	e.mu.Lock()
	dirs := e.tempDirs
	e.tempDirs = nil
	saveTemps := e.Config.SaveTemps
	e.mu.Unlock()

	for _, dir := range dirs {
		if saveTemps {
			if e.Log != nil {
				e.Log.Info("keeping scratch directory: %s", dir)
			}
			continue
		}
		_ = os.RemoveAll(dir)
	}
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

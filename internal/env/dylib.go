package env

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/blakesmith/ar"

	"github.com/appstore-toolchain/bitcode-rebuild/internal/diag"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/translate"
)

const sdkPathPrefix = "{SDKPATH}"

// ResolveDylib resolves a <dylibs> entry from a bundle's subdoc to an
// on-disk path: the {SDKPATH}
// prefix (after a possible framework-name upgrade) is checked first,
// then the library-list file, then the toolchain's clang_rt/swift
// directories, then the active SDK's usr/lib and framework
// directories. allowFailure mirrors the <weak> case: a missing weak
// dylib returns ("", nil) with a warning instead of LibraryNotFound.
func (e *ToolEnv) ResolveDylib(arch, lib string, allowFailure bool) (string, error) {
	if e.Runner.VerifyMode() {
		return lib, nil
	}
	if strings.HasPrefix(lib, sdkPathPrefix) {
		upgraded := translate.UpgradeLibrary(lib[len(sdkPathPrefix):])
		sdkPath, err := e.SDKPath()
		if err == nil {
			libPath := sdkPath + upgraded
			if found, ok := findLibraryInDir(filepath.Dir(libPath), filepath.Base(libPath), false); ok {
				return found, nil
			}
		}
	}

	libname := filepath.Base(lib)
	if path, ok := e.libraryListLookup(libname); ok {
		return path, nil
	}

	var searchDirs []string
	searchDirs = append(searchDirs, e.LibrarySearchPaths()...)
	if clangRT, err := e.GetLibClangRT(arch); err == nil {
		searchDirs = append(searchDirs, filepath.Dir(clangRT))
	}
	if toolchainDir, err := e.toolchainLibDir(); err == nil {
		platform, _ := e.Platform()
		searchDirs = append(searchDirs, filepath.Join(toolchainDir, "swift", platformSDKName[platform]))
	}
	if sdkPath, err := e.SDKPath(); err == nil {
		searchDirs = append(searchDirs,
			filepath.Join(sdkPath, "usr", "lib"),
			filepath.Join(sdkPath, "System", "Library", "Frameworks"),
		)
	}

	for _, dir := range searchDirs {
		if path, ok := findLibraryInDir(dir, libname, true); ok {
			return path, nil
		}
	}
	if allowFailure {
		if e.Log != nil {
			e.Log.Warning("%s not found in dylib search path", libname)
		}
		return "", nil
	}
	return "", diag.New(diag.LibraryNotFound, "%s not found in dylib search path", libname)
}

// findLibraryInDir looks for lib under dir, remapping .dylib<->.tbd to
// account for stub TBD files that often stand in for a real dylib in
// an SDK, and, if frameworkDir is set, retrying inside lib's
// corresponding .framework directory.
func findLibraryInDir(dir, lib string, frameworkDir bool) (string, bool) {
	if dir == "" {
		return "", false
	}
	libPath := filepath.Join(dir, lib)
	if info, err := os.Stat(libPath); err == nil && !info.IsDir() {
		return libPath, true
	}

	switch {
	case strings.HasSuffix(libPath, ".dylib"):
		libPath = strings.TrimSuffix(libPath, ".dylib") + ".tbd"
	case strings.HasSuffix(libPath, ".tbd"):
		trimmed := strings.TrimSuffix(libPath, ".tbd")
		if strings.HasPrefix(filepath.Base(libPath), "lib") {
			libPath = trimmed + ".dylib"
		} else {
			libPath = trimmed
		}
	default:
		libPath = libPath + ".tbd"
	}
	if info, err := os.Stat(libPath); err == nil && !info.IsDir() {
		return libPath, true
	}

	if frameworkDir {
		ext := filepath.Ext(lib)
		base := strings.TrimSuffix(lib, ext)
		return findLibraryInDir(filepath.Join(dir, base+".framework"), lib, false)
	}
	return "", false
}

// toolchainLibDir locates the active toolchain's usr/lib directory by
// asking for clang's own path and walking up two levels.
func (e *ToolEnv) toolchainLibDir() (string, error) {
	clangPath, err := e.GetTool("clang")
	if err != nil {
		return "", err
	}
	toolchainRoot := filepath.Dir(filepath.Dir(filepath.Dir(clangPath)))
	return filepath.Join(toolchainRoot, "usr", "lib"), nil
}

// GetLibClangRT resolves the compiler-rt static archive clang itself
// would auto-link for arch: ask clang to print (not run) its driver-internal
// commands with -### and pull the second-to-last quoted string out of
// the banner, which is the libclang_rt.*.a path clang passes to ld.
func (e *ToolEnv) GetLibClangRT(arch string) (string, error) {
	e.mu.Lock()
	if cached, ok := e.clangRTCache[arch]; ok {
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	clang, err := e.GetTool("clang")
	if err != nil {
		return "", err
	}
	sdkPath, err := e.SDKPath()
	if err != nil {
		return "", err
	}
	out, _, err := e.Runner.Run([]string{clang, "-arch", arch, "/dev/null", "-isysroot", sdkPath, "-###"}, "")
	if err != nil {
		return "", diag.Wrap(diag.LibraryNotFound, err, "probing libclang_rt for arch %s", arch)
	}
	path, ok := secondToLastQuoted(out)
	if !ok {
		return "", diag.New(diag.LibraryNotFound, "could not parse libclang_rt path from clang -### output for arch %s", arch)
	}
	e.mu.Lock()
	if e.clangRTCache == nil {
		e.clangRTCache = make(map[string]string)
	}
	e.clangRTCache[arch] = path
	e.mu.Unlock()
	return path, nil
}

// secondToLastQuoted returns the second-to-last "..."-delimited
// substring in s.
func secondToLastQuoted(s string) (string, bool) {
	parts := strings.Split(s, "\"")
	if len(parts) < 2 {
		return "", false
	}
	return parts[len(parts)-2], true
}

// GetLibSwiftPath returns the directory containing libswiftCore.dylib
// for arch: resolve the dylib itself, then take its directory.
func (e *ToolEnv) GetLibSwiftPath(arch string) (string, error) {
	swiftcore, err := e.ResolveDylib(arch, "libswiftCore.dylib", true)
	if err != nil || swiftcore == "" {
		return "", err
	}
	return filepath.Dir(swiftcore), nil
}

// ValidateStaticArchive sanity-checks path as a BSD ar archive before
// it is handed to the linker, so a corrupt static library (e.g. a
// truncated download in a library-list entry) fails with a clear
// diagnostic instead of an opaque `ld` error.
func ValidateStaticArchive(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return diag.Wrap(diag.LibraryNotFound, err, "opening static archive %s", path)
	}
	defer f.Close()

	reader := ar.NewReader(f)
	if _, err := reader.Next(); err != nil {
		return diag.Wrap(diag.ArchiveBroken, err, "%s is not a valid static archive", path)
	}
	return nil
}

// libraryListLookup consults Config.LibraryListPath, a file of one
// absolute library path per line, matching by basename.
func (e *ToolEnv) libraryListLookup(basename string) (string, bool) {
	if e.Config.LibraryListPath == "" {
		return "", false
	}
	entries, err := readLibraryList(e.Config.LibraryListPath)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if filepath.Base(entry) == basename {
			return entry, true
		}
	}
	return "", false
}


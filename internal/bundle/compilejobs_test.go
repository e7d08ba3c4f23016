package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/appstore-toolchain/bitcode-rebuild/internal/env"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/xar"
)

func writeArchiveFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRawTextCopiesIndependently(t *testing.T) {
	src := []string{"-a", "-b"}
	out := rawText(src)
	out[0] = "-changed"
	if src[0] != "-a" {
		t.Fatal("expected rawText to return an independent copy")
	}
}

func TestCompileClangBitcodeRunsAndAppendsWatchRestriction(t *testing.T) {
	e := newTestEnv(t)
	if err := e.SetPlatform(env.PlatformWatchOS); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	writeArchiveFile(t, dir, "a.bc", "bitcode")

	b := &Bundle{Arch: "armv7k", archive: &xar.Archive{Dir: dir}}
	f := xar.File{Name: "a.bc", FileType: "Bitcode", Clang: &xar.Frontend{Cmd: []string{"-emit-obj", "-triple", "armv7k-apple-watchos2.0.0"}}}
	if _, err := b.compileClangBitcode(e, f, "a.bc.o"); err != nil {
		t.Fatal(err)
	}
}

func TestCompileClangBitcodeRejectsDisallowedOption(t *testing.T) {
	e := newTestEnv(t)
	if err := e.SetPlatform(env.PlatformIOS); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	writeArchiveFile(t, dir, "a.bc", "bitcode")

	b := &Bundle{Arch: "arm64", archive: &xar.Archive{Dir: dir}}
	f := xar.File{Name: "a.bc", FileType: "Bitcode", Clang: &xar.Frontend{Cmd: []string{"-emit-obj", "-not-a-real-flag"}}}
	if _, err := b.compileClangBitcode(e, f, "a.bc.o"); err == nil {
		t.Fatal("expected option verification to reject -not-a-real-flag")
	}
}

func TestCompileClangBitcodeTriggersTripleRetargetingUnderTranslateWatchOS(t *testing.T) {
	e := newTestEnv(t)
	e.Config.TranslateWatchOS = true
	if err := e.SetPlatform(env.PlatformWatchOS); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	writeArchiveFile(t, dir, "a.bc", "bitcode")

	b := &Bundle{Arch: "arm64_32", archive: &xar.Archive{Dir: dir}}
	f := xar.File{Name: "a.bc", FileType: "Bitcode", Clang: &xar.Frontend{Cmd: []string{"-emit-obj", "-triple", "armv7k-apple-watchos2.0.0"}}}
	if _, err := b.compileClangBitcode(e, f, "a.bc.o"); err != nil {
		t.Fatal(err)
	}
}

func TestCompileSwiftNativeRenamesInputToBCExtension(t *testing.T) {
	e := newTestEnv(t)
	if err := e.SetPlatform(env.PlatformIOS); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	writeArchiveFile(t, dir, "a.swiftbc", "bitcode")

	b := &Bundle{Arch: "arm64", archive: &xar.Archive{Dir: dir}}
	f := xar.File{Name: "a.swiftbc", FileType: "Bitcode", Swift: &xar.Frontend{Cmd: []string{"-emit-object", "-target", "arm64-apple-ios12.0"}}}
	if _, err := b.compileSwiftNative(e, f, "a.swiftbc.o"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.swiftbc.bc")); err != nil {
		t.Fatalf("expected input to be renamed to a .bc extension: %v", err)
	}
}

func TestCompileSwiftNativeAppliesForceOptimization(t *testing.T) {
	e := newTestEnv(t)
	if err := e.SetPlatform(env.PlatformIOS); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	writeArchiveFile(t, dir, "a.swiftbc", "bitcode")

	b := &Bundle{Arch: "arm64", ForceOptimizeSwift: true, archive: &xar.Archive{Dir: dir}}
	f := xar.File{Name: "a.swiftbc", FileType: "Bitcode", Swift: &xar.Frontend{Cmd: []string{"-emit-object", "-Onone"}}}
	if _, err := b.compileSwiftNative(e, f, "a.swiftbc.o"); err != nil {
		t.Fatal(err)
	}
}

func TestCompileSwiftAsClangCrossTranslates(t *testing.T) {
	e := newTestEnv(t)
	if err := e.SetPlatform(env.PlatformIOS); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	writeArchiveFile(t, dir, "a.swiftbc", "bitcode")

	b := &Bundle{Arch: "arm64", CompileSwiftAsC: true, archive: &xar.Archive{Dir: dir}}
	f := xar.File{Name: "a.swiftbc", FileType: "Bitcode", Swift: &xar.Frontend{Cmd: []string{"-frontend", "-emit-object", "-target", "arm64-apple-ios12.0"}}}
	if _, err := b.compileSwiftAsClang(e, f, "a.swiftbc.o"); err != nil {
		t.Fatal(err)
	}
}

func TestCompileSwiftBitcodeDispatchesOnCompileSwiftAsC(t *testing.T) {
	e := newTestEnv(t)
	if err := e.SetPlatform(env.PlatformIOS); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()

	writeArchiveFile(t, dir, "native.swiftbc", "bitcode")
	nativeBundle := &Bundle{Arch: "arm64", archive: &xar.Archive{Dir: dir}}
	nativeFile := xar.File{Name: "native.swiftbc", FileType: "Bitcode", Swift: &xar.Frontend{Cmd: []string{"-emit-object"}}}
	if _, err := nativeBundle.compileSwiftBitcode(e, nativeFile, "native.swiftbc.o"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "native.swiftbc.bc")); err != nil {
		t.Fatal("expected the native swift path to rename the input to .bc")
	}

	writeArchiveFile(t, dir, "asclang.swiftbc", "bitcode")
	clangBundle := &Bundle{Arch: "arm64", CompileSwiftAsC: true, archive: &xar.Archive{Dir: dir}}
	clangFile := xar.File{Name: "asclang.swiftbc", FileType: "Bitcode", Swift: &xar.Frontend{Cmd: []string{"-frontend", "-emit-object"}}}
	if _, err := clangBundle.compileSwiftBitcode(e, clangFile, "asclang.swiftbc.o"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "asclang.swiftbc.bc")); err == nil {
		t.Fatal("expected the compile-swift-as-c path not to rename the input")
	}
}

func TestNewObjectJobCopiesFile(t *testing.T) {
	e := newTestEnv(t)
	dir := t.TempDir()
	writeArchiveFile(t, dir, "obj.o", "object")

	b := &Bundle{archive: &xar.Archive{Dir: dir}}
	job := b.newObjectJob(e, xar.File{Name: "obj.o", FileType: "Object"})
	if err := job.RunOnce(); err != nil {
		t.Fatal(err)
	}
	if job.Result != "obj.o.o" {
		t.Fatalf("expected result obj.o.o, got %s", job.Result)
	}
}

func TestRunCompileJobsSortsOutputsLexicographically(t *testing.T) {
	e := newTestEnv(t)
	if err := e.SetPlatform(env.PlatformIOS); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	writeArchiveFile(t, dir, "zzz.bc", "bitcode")
	writeArchiveFile(t, dir, "aaa.o", "object")
	writeArchiveFile(t, dir, "mmm.bc", "bitcode")

	b := &Bundle{Arch: "arm64", archive: &xar.Archive{
		Dir: dir,
		Files: []xar.File{
			{Name: "zzz.bc", FileType: "Bitcode", Clang: &xar.Frontend{Cmd: []string{"-emit-obj"}}},
			{Name: "aaa.o", FileType: "Object"},
			{Name: "mmm.bc", FileType: "Bitcode", Clang: &xar.Frontend{Cmd: []string{"-emit-obj"}}},
		},
	}}
	inputs, err := b.runCompileJobs(e)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"aaa.o.o", "mmm.bc.o", "zzz.bc.o"}
	if len(inputs.Sorted) != len(want) {
		t.Fatalf("got %v, want %v", inputs.Sorted, want)
	}
	for i, name := range want {
		if inputs.Sorted[i] != name {
			t.Fatalf("got %v, want %v", inputs.Sorted, want)
		}
	}
}

func TestRunCompileJobsDetectsSwiftBitcode(t *testing.T) {
	e := newTestEnv(t)
	if err := e.SetPlatform(env.PlatformIOS); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	writeArchiveFile(t, dir, "a.swiftbc", "bitcode")

	b := &Bundle{Arch: "arm64", archive: &xar.Archive{
		Dir:   dir,
		Files: []xar.File{{Name: "a.swiftbc", FileType: "Bitcode", Swift: &xar.Frontend{Cmd: []string{"-emit-object"}}}},
	}}
	if _, err := b.runCompileJobs(e); err != nil {
		t.Fatal(err)
	}
	if !b.ContainsSwift {
		t.Fatal("expected ContainsSwift to be set after compiling a Swift bitcode entry")
	}
}

package env

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestEnv(t *testing.T) *ToolEnv {
	t.Helper()
	t.Setenv("TESTING", "1")
	cfg := &BuildConfig{Workers: 2}
	return NewToolEnv(cfg, nil)
}

func TestPlatformStartsUnset(t *testing.T) {
	e := newTestEnv(t)
	_, set := e.Platform()
	if set {
		t.Fatal("expected platform to start unset")
	}
	if _, err := e.GetTool("clang"); err == nil {
		t.Fatal("expected PlatformUnset error before SetPlatform")
	}
}

func TestSetPlatformRejectsUnknown(t *testing.T) {
	e := newTestEnv(t)
	if err := e.SetPlatform("Nonsense"); err == nil {
		t.Fatal("expected error for unknown platform")
	}
}

func TestSetPlatformFlushesToolCacheOnChange(t *testing.T) {
	e := newTestEnv(t)
	if err := e.SetPlatform(PlatformIPhoneOS); err != nil {
		t.Fatal(err)
	}
	e.cacheTool("clang", "/fake/iphoneos/clang")

	if err := e.SetPlatform(PlatformIPhoneOS); err != nil {
		t.Fatal(err)
	}
	if p, _ := e.Platform(); p != PlatformIPhoneOS {
		t.Fatalf("re-setting same platform should be a no-op, got %s", p)
	}
	e.mu.Lock()
	_, stillCached := e.toolCache["clang"]
	e.mu.Unlock()
	if !stillCached {
		t.Fatal("re-setting the same platform must not flush the tool cache")
	}

	if err := e.SetPlatform(PlatformMacOSX); err != nil {
		t.Fatal(err)
	}
	e.mu.Lock()
	_, stillCachedAfterChange := e.toolCache["clang"]
	e.mu.Unlock()
	if stillCachedAfterChange {
		t.Fatal("changing platform must flush the tool cache")
	}
}

func TestCreateTempDirTracksForCleanup(t *testing.T) {
	e := newTestEnv(t)
	dir, err := e.CreateTempDir("test")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected temp dir to exist: %v", err)
	}
	e.Cleanup()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("expected temp dir to be removed after Cleanup")
	}
}

func TestCleanupSavesTempsWhenConfigured(t *testing.T) {
	e := newTestEnv(t)
	e.Config.SaveTemps = true
	dir, err := e.CreateTempDir("test")
	if err != nil {
		t.Fatal(err)
	}
	e.Cleanup()
	if _, err := os.Stat(dir); err != nil {
		t.Fatal("expected temp dir to survive Cleanup when SaveTemps is set")
	}
	os.RemoveAll(dir)
}

func TestGetToolFindsExtraToolPath(t *testing.T) {
	dir := t.TempDir()
	fakeClang := filepath.Join(dir, "clang")
	if err := os.WriteFile(fakeClang, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	e := newTestEnv(t)
	e.Config.ExtraToolPaths = []string{dir}
	if err := e.SetPlatform(PlatformMacOSX); err != nil {
		t.Fatal(err)
	}
	path, err := e.GetTool("clang")
	if err != nil {
		t.Fatal(err)
	}
	if path != fakeClang {
		t.Fatalf("expected %s, got %s", fakeClang, path)
	}
}

package toolcmd

import (
	"testing"

	"github.com/appstore-toolchain/bitcode-rebuild/internal/diag"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/env"
)

func newTestEnv(t *testing.T) *env.ToolEnv {
	t.Helper()
	t.Setenv("TESTING", "1")
	e := env.NewToolEnv(&env.BuildConfig{Workers: 1}, diag.NewLogger(false, false))
	if err := e.SetPlatform(env.PlatformIPhoneOS); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestClangBuildsExpectedArgv(t *testing.T) {
	e := newTestEnv(t)
	res, err := Clang(e, "in.bc", "out.o", "/tmp", "ir", []string{"-emit-obj", "-triple", "arm64-apple-ios10.0"})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0 in TESTING mode, got %d", res.ExitCode)
	}
}

func TestLdSkippedInVerifyMode(t *testing.T) {
	e := env.NewToolEnv(&env.BuildConfig{Workers: 1, VerifyOnly: true}, diag.NewLogger(false, false))
	if err := e.SetPlatform(env.PlatformIPhoneOS); err != nil {
		t.Fatal(err)
	}
	res, err := Ld(e, "a.out", "/tmp", []string{"-arch", "arm64"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Output != "" {
		t.Fatalf("expected no output in verify mode, got %q", res.Output)
	}
}

func TestMachoInfoNeverReturnsError(t *testing.T) {
	e := newTestEnv(t)
	_, err := MachoInfo(e, "not-a-file", "/tmp")
	if err != nil {
		t.Fatalf("MachoInfo must swallow subprocess failure, got %v", err)
	}
}

func TestStripDebugUsesSwiftFlagWhenRequested(t *testing.T) {
	e := newTestEnv(t)
	if _, err := StripDebug(e, "a.out", true, "/tmp"); err != nil {
		t.Fatal(err)
	}
}

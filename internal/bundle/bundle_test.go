package bundle

import (
	"testing"

	"github.com/appstore-toolchain/bitcode-rebuild/internal/diag"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/env"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/xar"
)

func newTestEnv(t *testing.T) *env.ToolEnv {
	t.Helper()
	t.Setenv("TESTING", "1")
	cfg := &env.BuildConfig{Workers: 2}
	return env.NewToolEnv(cfg, diag.NewLogger(false, false))
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateNew:       "New",
		StateExtracted: "Extracted",
		StateCompiled:  "Compiled",
		StateLinked:    "Linked",
		StateFailed:    "Failed",
		StateRetrying:  "Retrying",
		State(99):      "Unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}

func TestNewStartsInStateNew(t *testing.T) {
	b := New("in.xar", "out.o", "arm64")
	if b.State != StateNew {
		t.Fatalf("expected StateNew, got %s", b.State)
	}
	if b.Input != "in.xar" || b.Output != "out.o" || b.Arch != "arm64" {
		t.Fatalf("unexpected fields: %+v", b)
	}
}

func TestEligibleForRetry(t *testing.T) {
	cases := []struct {
		name               string
		containsSwift      bool
		forceOptimizeSwift bool
		retried            bool
		want               bool
	}{
		{"swift never retried", true, false, false, true},
		{"no swift", false, false, false, false},
		{"already force-optimized", true, true, false, false},
		{"already retried once", true, false, true, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := &Bundle{ContainsSwift: c.containsSwift, ForceOptimizeSwift: c.forceOptimizeSwift, retried: c.retried}
			if got := b.eligibleForRetry(); got != c.want {
				t.Fatalf("eligibleForRetry() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestIsTranslateWatchOSRequiresBothConfigAndPlatform(t *testing.T) {
	e := newTestEnv(t)
	b := &Bundle{}
	if b.isTranslateWatchOS(e) {
		t.Fatal("expected false before config or platform is set")
	}

	e.Config.TranslateWatchOS = true
	if err := e.SetPlatform(env.PlatformIPhoneOS); err != nil {
		t.Fatal(err)
	}
	if b.isTranslateWatchOS(e) {
		t.Fatal("expected false for a non-watch platform even with the flag set")
	}

	e2 := newTestEnv(t)
	e2.Config.TranslateWatchOS = true
	if err := e2.SetPlatform(env.PlatformWatchOS); err != nil {
		t.Fatal(err)
	}
	if !b.isTranslateWatchOS(e2) {
		t.Fatal("expected true for the watch platform with translate-watchos set")
	}
}

func TestApplyHeaderSetsPlatformAndRetargetsArch(t *testing.T) {
	e := newTestEnv(t)
	e.Config.TranslateWatchOS = true
	b := &Bundle{Arch: "armv7k", archive: &xar.Archive{Subdoc: xar.Subdoc{Platform: "watchOS", Version: "1.0"}}}
	if err := b.applyHeader(e); err != nil {
		t.Fatal(err)
	}
	if platform, ok := e.Platform(); !ok || platform != env.PlatformWatchOS {
		t.Fatalf("expected platform to be set to watchOS, got %v set=%v", platform, ok)
	}
	if b.Arch != "arm64_32" {
		t.Fatalf("expected arch to be retargeted to arm64_32, got %s", b.Arch)
	}
}

func TestApplyHeaderLeavesArchAloneWithoutTranslateWatchOS(t *testing.T) {
	e := newTestEnv(t)
	b := &Bundle{Arch: "armv7k", archive: &xar.Archive{Subdoc: xar.Subdoc{Platform: "watchOS", Version: "1.0"}}}
	if err := b.applyHeader(e); err != nil {
		t.Fatal(err)
	}
	if b.Arch != "armv7k" {
		t.Fatalf("expected arch to remain armv7k without --translate-watchos, got %s", b.Arch)
	}
}

func TestApplyHeaderRejectsUnsupportedBundleVersion(t *testing.T) {
	e := newTestEnv(t)
	b := &Bundle{Arch: "arm64", archive: &xar.Archive{Subdoc: xar.Subdoc{Platform: "iOS", Version: "2.0"}}}
	err := b.applyHeader(e)
	if err == nil {
		t.Fatal("expected an error for an unsupported bundle version")
	}
	if de, ok := err.(*diag.Error); !ok || de.Kind != diag.BundleVersionUnsupported {
		t.Fatalf("expected BundleVersionUnsupported, got %v", err)
	}
}

func TestContainsSymbolsDelegatesToSubdoc(t *testing.T) {
	hidden := "1"
	b := &Bundle{archive: &xar.Archive{Subdoc: xar.Subdoc{HideSymbols: &hidden}}}
	if b.ContainsSymbols() {
		t.Fatal("expected hide-symbols=1 to report false")
	}
}

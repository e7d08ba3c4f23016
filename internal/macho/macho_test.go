package macho

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/appstore-toolchain/bitcode-rebuild/internal/diag"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/env"
)

func writeMagic(t *testing.T, magic []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bin")
	data := append(append([]byte(nil), magic...), make([]byte, 32)...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGetTypeClassifiesThin(t *testing.T) {
	path := writeMagic(t, []byte{0xfe, 0xed, 0xfa, 0xce})
	typ, err := GetType(path)
	if err != nil {
		t.Fatal(err)
	}
	if typ != Thin {
		t.Fatalf("expected Thin, got %v", typ)
	}
}

func TestGetTypeClassifiesFat(t *testing.T) {
	path := writeMagic(t, []byte{0xca, 0xfe, 0xba, 0xbe})
	typ, err := GetType(path)
	if err != nil {
		t.Fatal(err)
	}
	if typ != Fat {
		t.Fatalf("expected Fat, got %v", typ)
	}
}

func TestGetTypeRejectsGarbage(t *testing.T) {
	path := writeMagic(t, []byte{0x00, 0x01, 0x02, 0x03})
	typ, err := GetType(path)
	if err != nil {
		t.Fatal(err)
	}
	if typ != Invalid {
		t.Fatalf("expected Invalid, got %v", typ)
	}
}

func TestHasArch(t *testing.T) {
	m := &Macho{Archs: []string{"arm64", "x86_64"}}
	if !m.hasArch("arm64") {
		t.Fatal("expected arm64 to be present")
	}
	if m.hasArch("armv7k") {
		t.Fatal("expected armv7k to be absent")
	}
}

func TestGetSliceReturnsPathDirectlyForThin(t *testing.T) {
	t.Setenv("TESTING", "1")
	e := env.NewToolEnv(&env.BuildConfig{}, diag.NewLogger(false, false))
	m := &Macho{Path: "/tmp/bin", Type: Thin, Archs: []string{"arm64"}}
	path, err := m.GetSlice(e, "arm64")
	if err != nil {
		t.Fatal(err)
	}
	if path != "/tmp/bin" {
		t.Fatalf("expected thin slice to return the original path, got %s", path)
	}
}

func TestGetSliceRejectsUnknownArch(t *testing.T) {
	t.Setenv("TESTING", "1")
	e := env.NewToolEnv(&env.BuildConfig{}, diag.NewLogger(false, false))
	m := &Macho{Path: "/tmp/bin", Type: Fat, Archs: []string{"arm64"}}
	if _, err := m.GetSlice(e, "armv7k"); err == nil {
		t.Fatal("expected an error for an arch absent from the binary")
	}
}

func TestIsExecutableRequiresEverySlice(t *testing.T) {
	m := &Macho{}
	if m.IsExecutable() {
		t.Fatal("expected IsExecutable to be false with no slices")
	}
	m.AddOutputSlice("arm64", "/tmp/a.o", true)
	if !m.IsExecutable() {
		t.Fatal("expected a single executable slice to report true")
	}
	m.AddOutputSlice("x86_64", "/tmp/b.o", false)
	if m.IsExecutable() {
		t.Fatal("expected a mixed executable/non-executable set to report false")
	}
}

func TestInstallOutputSingleSliceRenames(t *testing.T) {
	t.Setenv("TESTING", "1")
	e := env.NewToolEnv(&env.BuildConfig{}, diag.NewLogger(false, false))
	dir := t.TempDir()
	sliceOutput := filepath.Join(dir, "slice.o")
	if err := os.WriteFile(sliceOutput, []byte("object"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := &Macho{}
	m.AddOutputSlice("arm64", sliceOutput, true)

	dest := filepath.Join(dir, "nested", "a.out")
	if err := m.InstallOutput(e, dest); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected install to produce %s: %v", dest, err)
	}
}

func TestInstallOutputRequiresAtLeastOneSlice(t *testing.T) {
	t.Setenv("TESTING", "1")
	e := env.NewToolEnv(&env.BuildConfig{}, diag.NewLogger(false, false))
	m := &Macho{}
	if err := m.InstallOutput(e, filepath.Join(t.TempDir(), "a.out")); err == nil {
		t.Fatal("expected an error when no slice has been built")
	}
}

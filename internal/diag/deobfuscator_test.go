package diag

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeMap(t *testing.T, dir string, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDeobfuscateSingleFile(t *testing.T) {
	dir := t.TempDir()
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "line"
	}
	lines[13] = "_MyFunc"
	mapFile := writeMap(t, dir, "sym.bcsymbolmap", lines)

	d := NewDeobfuscator(mapFile)
	d.SelectUUID("ABCD")
	got, ok := d.TryDeobfuscate("undefined symbol: __hidden#12_")
	if !ok {
		t.Fatalf("expected successful deobfuscation")
	}
	if !strings.Contains(got, "_MyFunc") {
		t.Fatalf("expected deobfuscated message to contain _MyFunc, got %q", got)
	}
}

func TestDeobfuscateDirectoryPerUUID(t *testing.T) {
	dir := t.TempDir()
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "line"
	}
	lines[1] = "_Foo"
	writeMap(t, dir, "1111-2222.bcsymbolmap", lines)

	d := NewDeobfuscator(dir)
	d.SelectUUID("1111-2222")
	got, ok := d.TryDeobfuscate("crash in __hidden#0_")
	if !ok || !strings.Contains(got, "_Foo") {
		t.Fatalf("expected _Foo, got %q ok=%v", got, ok)
	}
}

func TestDeobfuscateNoSigilReturnsFalse(t *testing.T) {
	d := NewDeobfuscator("/nonexistent")
	if _, ok := d.TryDeobfuscate("nothing to see here"); ok {
		t.Fatalf("expected no-op for message without sigil")
	}
}

func TestDeobfuscateMissingMapReturnsFalse(t *testing.T) {
	d := NewDeobfuscator(filepath.Join(t.TempDir(), "missing.bcsymbolmap"))
	if _, ok := d.TryDeobfuscate("__hidden#0_"); ok {
		t.Fatalf("expected false for unreadable map")
	}
}

func TestDeobfuscateOutOfRangeReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	mapFile := writeMap(t, dir, "small.bcsymbolmap", []string{"only one line"})
	d := NewDeobfuscator(mapFile)
	if _, ok := d.TryDeobfuscate("__hidden#50_"); ok {
		t.Fatalf("expected false for out-of-range index")
	}
}

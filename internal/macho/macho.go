// Package macho implements the Mach-O Façade: thin/fat
// classification, per-architecture slice extraction and caching,
// embedded bitcode-section extraction, UUID parsing, and final fat
// re-assembly, built over the toolcmd lipo/segedit/dwarfdump wrappers.
package macho

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/appstore-toolchain/bitcode-rebuild/internal/diag"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/env"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/toolcmd"
)

// Type classifies a Mach-O file by its magic bytes.
type Type int

const (
	Invalid Type = iota
	Thin
	Fat
)

var thinMagics = [][]byte{
	{0xfe, 0xed, 0xfa, 0xce}, // feedface
	{0xfe, 0xed, 0xfa, 0xcf}, // feedfacf
	{0xce, 0xfa, 0xed, 0xfe}, // cefaedfe
	{0xcf, 0xfa, 0xed, 0xfe}, // cffaedfe
}

var fatMagics = [][]byte{
	{0xca, 0xfe, 0xba, 0xbe}, // cafebabe
	{0xbe, 0xba, 0xfe, 0xca}, // bebafeca
}

// GetType reads the first four bytes of path and classifies it per the
// magic-number table for thin and fat Mach-O headers.
func GetType(path string) (Type, error) {
	f, err := os.Open(path)
	if err != nil {
		return Invalid, diag.Wrap(diag.ArchiveBroken, err, "cannot open %s", path)
	}
	defer f.Close()
	var magic [4]byte
	if _, err := f.Read(magic[:]); err != nil {
		return Invalid, diag.Wrap(diag.ArchiveBroken, err, "cannot read magic from %s", path)
	}
	for _, m := range thinMagics {
		if bytes.Equal(magic[:], m) {
			return Thin, nil
		}
	}
	for _, m := range fatMagics {
		if bytes.Equal(magic[:], m) {
			return Fat, nil
		}
	}
	return Invalid, nil
}

// GetArch runs the fat-binary info tool on path and parses its
// "Non-fat file: … is architecture: <arch>" or "… are: <arch> <arch>
// …" banner.
func GetArch(e *env.ToolEnv, path string) ([]string, error) {
	res, err := toolcmd.MachoInfo(e, path, "")
	if err != nil {
		return nil, err
	}
	out := strings.TrimSpace(res.Output)
	if strings.HasPrefix(out, "Non-fat") {
		fields := strings.Fields(out)
		if len(fields) == 0 {
			return nil, diag.New(diag.ArchiveBroken, "could not parse architecture of %s", path)
		}
		return []string{fields[len(fields)-1]}, nil
	}
	fields := strings.Fields(out)
	for i, f := range fields {
		if f == "are:" {
			if i+1 >= len(fields) {
				return nil, diag.New(diag.ArchiveBroken, "could not detect architecture of %s", path)
			}
			return append([]string(nil), fields[i+1:]...), nil
		}
	}
	return nil, diag.New(diag.ArchiveBroken, "could not detect architecture of %s", path)
}

// GetUUID runs the debug-info tool's -u probe on path and parses its
// output into an arch -> UUID map. A line looks like:
//
//	UUID: 11111111-2222-3333-4444-555555555555 (arm64) /path/to/binary
func GetUUID(e *env.ToolEnv, path string) (map[string]string, error) {
	res, err := toolcmd.GetUUID(e, path, "")
	if err != nil {
		return nil, err
	}
	uuids := make(map[string]string)
	for _, line := range strings.Split(res.Output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		arch := strings.TrimSuffix(strings.TrimPrefix(fields[2], "("), ")")
		uuids[arch] = fields[1]
	}
	return uuids, nil
}

// Macho represents one input Mach-O file: its type, architectures, and
// per-arch UUIDs, plus the caches needed to serve repeated slice/bundle
// requests and the output slices accumulated as each architecture is
// rebuilt.
type Macho struct {
	Path string
	Name string

	Type  Type
	Archs []string
	UUID  map[string]string

	OutputSlices []OutputSlice
	OutputUUID   map[string]string

	tempDir      string
	sliceCache   map[string]string
	bitcodeCache map[string]string
}

// OutputSlice is one rebuilt architecture's output object and whether
// it was linked as an executable.
type OutputSlice struct {
	Arch       string
	Output     string
	Executable bool
}

// Open classifies path, enumerates its architectures and per-arch
// UUIDs, and allocates a scratch directory for slice/bundle
// extraction.
func Open(e *env.ToolEnv, path string) (*Macho, error) {
	typ, err := GetType(path)
	if err != nil {
		return nil, err
	}
	if typ == Invalid {
		return nil, diag.New(diag.ArchiveBroken, "input is not a macho file: %s", path)
	}
	name := filepath.Base(path)
	tempDir, err := e.CreateTempDir(name)
	if err != nil {
		return nil, err
	}
	archs, err := GetArch(e, path)
	if err != nil {
		return nil, err
	}
	uuid, err := GetUUID(e, path)
	if err != nil {
		return nil, err
	}
	return &Macho{
		Path:         path,
		Name:         name,
		Type:         typ,
		Archs:        archs,
		UUID:         uuid,
		tempDir:      tempDir,
		sliceCache:   make(map[string]string),
		bitcodeCache: make(map[string]string),
	}, nil
}

func (m *Macho) hasArch(arch string) bool {
	for _, a := range m.Archs {
		if a == arch {
			return true
		}
	}
	return false
}

// GetSlice returns the path to a thin Mach-O for arch, extracting it
// from the fat container on first request and caching the result
// thereafter.
func (m *Macho) GetSlice(e *env.ToolEnv, arch string) (string, error) {
	if !m.hasArch(arch) {
		return "", diag.New(diag.ArchiveBroken, "requested arch %s doesn't exist in %s", arch, m.Path)
	}
	if m.Type == Thin {
		return m.Path, nil
	}
	if cached, ok := m.sliceCache[arch]; ok {
		return cached, nil
	}
	extractPath := filepath.Join(m.tempDir, m.Name+"."+arch)
	if _, err := toolcmd.ExtractSlice(e, m.Path, arch, extractPath, ""); err != nil {
		return "", diag.Wrap(diag.ArchiveBroken, err, "cannot extract arch %s from %s", arch, m.Path)
	}
	m.sliceCache[arch] = extractPath
	return extractPath, nil
}

// GetXAR extracts the embedded __LLVM,__bundle section from arch's
// thin slice, caching the result. A section of size <= 1 means the
// slice carries only the bitcode marker and is not rebuildable: a size
// <= 1 (size 0 included) yields an ArchiveBroken error reporting that
// the bundle only contains the bitcode marker.
func (m *Macho) GetXAR(e *env.ToolEnv, arch string) (string, error) {
	if cached, ok := m.bitcodeCache[arch]; ok {
		return cached, nil
	}
	slice, err := m.GetSlice(e, arch)
	if err != nil {
		return "", err
	}
	extractPath := filepath.Join(m.tempDir, m.Name+"."+arch+".xar")
	if _, err := toolcmd.ExtractXAR(e, slice, extractPath, ""); err != nil {
		return "", diag.Wrap(diag.ArchiveBroken, err, "cannot extract bundle from %s (%s)", m.Path, arch)
	}
	info, err := os.Stat(extractPath)
	if err != nil {
		return "", diag.Wrap(diag.ArchiveBroken, err, "cannot extract bundle from %s (%s)", m.Path, arch)
	}
	if info.Size() <= 1 {
		return "", diag.New(diag.ArchiveBroken, "bundle only contains bitcode-marker %s (%s)", m.Path, arch)
	}
	m.bitcodeCache[arch] = extractPath
	return extractPath, nil
}

// AddOutputSlice records one architecture's rebuilt output, called by
// the bundle engine once a BundleRun reaches Linked.
func (m *Macho) AddOutputSlice(arch, output string, executable bool) {
	m.OutputSlices = append(m.OutputSlices, OutputSlice{Arch: arch, Output: output, Executable: executable})
}

// IsExecutable reports whether every rebuilt slice linked as an
// executable.
func (m *Macho) IsExecutable() bool {
	if len(m.OutputSlices) == 0 {
		return false
	}
	for _, s := range m.OutputSlices {
		if !s.Executable {
			return false
		}
	}
	return true
}

// InstallOutput moves the single rebuilt slice into place, or
// reassembles multiple slices into a fat binary via lipo. It then
// records the output UUIDs for use by the dSYM UUID-map writer.
func (m *Macho) InstallOutput(e *env.ToolEnv, path string) error {
	if len(m.OutputSlices) == 0 {
		return diag.New(diag.ArchiveBroken, "install failed: no bitcode build yet")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return diag.Wrap(diag.ArchiveBroken, err, "install failed: can't create %s", path)
	}
	if len(m.OutputSlices) == 1 {
		if err := os.Rename(m.OutputSlices[0].Output, path); err != nil {
			if err := copyFile(m.OutputSlices[0].Output, path); err != nil {
				return diag.Wrap(diag.ArchiveBroken, err, "install failed: can't create %s", path)
			}
		}
	} else {
		inputs := make([]string, len(m.OutputSlices))
		for i, s := range m.OutputSlices {
			inputs[i] = s.Output
		}
		if _, err := toolcmd.LipoCreate(e, inputs, path, ""); err != nil {
			return err
		}
	}
	uuid, err := GetUUID(e, path)
	if err != nil {
		return err
	}
	m.OutputUUID = uuid
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

package dsym

import (
	"os"
	"path/filepath"

	"howett.net/plist"

	"github.com/appstore-toolchain/bitcode-rebuild/internal/diag"
)

// uuidMapEntry is the property list payload written per architecture
// into a dSYM bundle's Resources directory.
type uuidMapEntry struct {
	DBGOriginalUUID string `plist:"DBGOriginalUUID"`
}

// WriteUUIDMap writes one `<resourceDir>/<new-uuid>.plist` per
// architecture, mapping the rebuilt output's UUID back to the original
// bitcode-era UUID, so Xcode/symbolication tools can locate the right
// dSYM for a crash report captured against the pre-rebuild binary.
// archs is the original architecture list (pre-retargeting); retargetedArch
// reports, per arch, whether that arch's rebuilt output actually landed
// under "arm64_32" (the translate-watchos armv7k migration).
func WriteUUIDMap(dsymPath string, archs []string, oldUUID, newUUID map[string]string, retargetedArch map[string]string) error {
	resourceDir := filepath.Join(dsymPath, "Contents", "Resources")
	if info, err := os.Stat(resourceDir); err != nil || !info.IsDir() {
		return diag.New(diag.ArchiveBroken, "dSYM bundle not writable: %s", dsymPath)
	}

	for _, arch := range archs {
		old, ok := oldUUID[arch]
		if !ok {
			return diag.New(diag.ArchiveBroken, "cannot generate uuid map in dsym bundle: missing original uuid for %s", arch)
		}
		lookupArch := arch
		if retargeted, ok := retargetedArch[arch]; ok {
			lookupArch = retargeted
		}
		newU, ok := newUUID[lookupArch]
		if !ok {
			return diag.New(diag.ArchiveBroken, "cannot generate uuid map in dsym bundle: missing rebuilt uuid for %s", lookupArch)
		}

		path := filepath.Join(resourceDir, newU+".plist")
		f, err := os.Create(path)
		if err != nil {
			return diag.Wrap(diag.ArchiveBroken, err, "writing uuid map plist %s", path)
		}
		enc := plist.NewEncoder(f)
		enc.Indent("\t")
		err = enc.Encode(uuidMapEntry{DBGOriginalUUID: old})
		f.Close()
		if err != nil {
			return diag.Wrap(diag.ArchiveBroken, err, "encoding uuid map plist %s", path)
		}
	}
	return nil
}

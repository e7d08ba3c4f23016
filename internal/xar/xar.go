// Package xar reads bitcode bundle XAR archives:
// the TOC/subdoc XML dump via `xar -d`, and the archive's member files
// via `xar -x`.
package xar

import (
	"encoding/xml"
	"os"
	"path/filepath"

	"github.com/appstore-toolchain/bitcode-rebuild/internal/diag"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/env"
)

// Archive is an opened XAR bundle: its parsed TOC/subdoc, and the
// directory its members were extracted into.
type Archive struct {
	Subdoc Subdoc
	Files  []File
	Dir    string
}

// Open extracts inputPath's table of contents and member files into a
// fresh scratch directory owned by e: dump the TOC, extract the
// members, then chmod -R +r for read access on every extracted file.
func Open(e *env.ToolEnv, inputPath string) (*Archive, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return nil, diag.New(diag.ArchiveBroken, "input XAR doesn't exist: %s", inputPath)
	}

	tocOut, _, err := e.Runner.Run([]string{"/usr/bin/xar", "-d", "-", "-f", inputPath}, "")
	if err != nil {
		return nil, diag.Wrap(diag.ArchiveBroken, err, "toc cannot be extracted: %s", inputPath)
	}

	var d doc
	if err := xml.Unmarshal([]byte(tocOut), &d); err != nil {
		return nil, diag.Wrap(diag.ArchiveBroken, err, "malformed TOC in %s", inputPath)
	}

	dir, err := e.CreateTempDir(filepath.Base(inputPath))
	if err != nil {
		return nil, err
	}

	if _, _, err := e.Runner.Run([]string{"/usr/bin/xar", "-x", "-C", dir, "-f", inputPath}, ""); err != nil {
		return nil, diag.Wrap(diag.ArchiveBroken, err, "XAR cannot be extracted: %s", inputPath)
	}
	if _, _, err := e.Runner.Run([]string{"/bin/chmod", "-R", "+r", dir}, ""); err != nil {
		return nil, diag.Wrap(diag.ArchiveBroken, err, "permission fixup failed: %s", inputPath)
	}

	return &Archive{Subdoc: d.Subdoc, Files: d.Files, Dir: dir}, nil
}

// FilesOfType returns every TOC entry whose file-type matches want
// ("Bitcode", "Object", "Bundle", or "LTO").
func (a *Archive) FilesOfType(want string) []File {
	var out []File
	for _, f := range a.Files {
		if f.FileType == want {
			out = append(out, f)
		}
	}
	return out
}

// Path resolves a TOC entry's logical name to its extracted path.
func (a *Archive) Path(name string) string {
	return filepath.Join(a.Dir, name)
}

package bundle

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/appstore-toolchain/bitcode-rebuild/internal/diag"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/env"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/toolcmd"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/translate"
)

// link assembles the final linker invocation from the compiled inputs
// and the reconstructed link options, and runs it. Argument order is
// -arch, then the reconstructed link options, then the LTO-input
// block, then -filelist, then linker-version-gated flags,
// -lto_library, the dylib list, the Swift library search path, and
// finally the forced compiler-rt archive.
func (b *Bundle) link(e *env.ToolEnv, linkOpts []string, inputs linkInputs) error {
	argv := []string{"-arch", b.Arch}
	argv = append(argv, linkOpts...)

	master := append([]string(nil), inputs.Sorted...)

	if len(inputs.LTO) > 0 {
		argv = append(argv, "-flto-codegen-only", "-object_path_lto", b.Output+".lto.o")
		argv = append(argv, translate.ClangCompatibilityFlags(b.Arch)...)
		if platform, ok := e.Platform(); ok && platform.IsWatch() {
			argv = append(argv, "-mllvm", "-lto-module-no-asm")
		}

		ltoNames := make([]string, len(inputs.LTO))
		for i, f := range inputs.LTO {
			ltoNames[i] = f.Name
		}
		if b.isTranslateWatchOS(e) {
			rewritten, err := b.rewriteLTOInputs(e, ltoNames)
			if err != nil {
				return err
			}
			ltoNames = rewritten
			argv = append(argv, "-mllvm", "-aarch64-watch-bitcode-compatibility")
		}
		master = append(master, ltoNames...)
	}

	master = append(master, inputs.Nested...)

	linkFileList := filepath.Join(b.archive.Dir, filepath.Base(b.Output)+".LinkFileList")
	if err := writeLinkFileList(linkFileList, b.archive.Dir, master); err != nil {
		return err
	}
	argv = append(argv, "-filelist", linkFileList)

	if linkerVersion, err := e.LinkerVersion(); err == nil {
		if linkerVersion.SatisfiesMinimum("253.2") {
			argv = append(argv, "-ignore_auto_link")
		}
		if linkerVersion.SatisfiesMinimum("253.3.1") {
			argv = append(argv, "-allow_dead_duplicates")
		}
	}

	if e.Config.AltLTOLibraryPath != "" {
		argv = append(argv, "-lto_library", e.Config.AltLTOLibraryPath)
	}

	if b.archive.Subdoc.Dylibs != nil {
		for _, d := range b.archive.Subdoc.Dylibs.Entries {
			if !d.Weak {
				path, err := e.ResolveDylib(b.Arch, d.Path, false)
				if err != nil {
					return err
				}
				argv = append(argv, path)
				continue
			}
			path, err := e.ResolveDylib(b.Arch, d.Path, true)
			if err != nil {
				return err
			}
			if path != "" {
				argv = append(argv, "-weak_library", path)
			}
		}
	}

	if b.ContainsSwift {
		linkerVersion, err := e.LinkerVersion()
		if err != nil || !linkerVersion.SatisfiesMinimum("253.2") {
			if swiftLibPath, err := e.GetLibSwiftPath(b.Arch); err == nil && swiftLibPath != "" {
				argv = append(argv, "-L", swiftLibPath)
			}
		}
	}

	if b.archive.Subdoc.ForceloadCompilerRT() {
		argv = append(argv, "-force_load")
	}
	clangRT, err := e.GetLibClangRT(b.Arch)
	if err != nil {
		return err
	}
	argv = append(argv, clangRT)

	_, err = toolcmd.Ld(e, b.Output, b.archive.Dir, argv)
	return err
}

// rewriteLTOInputs retargets each LTO input's embedded triple via the
// clang IR rewrite job before it reaches the linker. The rewritten
// output is written into the archive's scratch directory as a real
// filesystem path (see DESIGN.md's Open Question decision on
// LinkFileList/LTO-rewrite path construction).
func (b *Bundle) rewriteLTOInputs(e *env.ToolEnv, names []string) ([]string, error) {
	out := make([]string, len(names))
	for i, name := range names {
		rewritten := filepath.Join(b.archive.Dir, name+".rewrite.o")
		if _, err := toolcmd.RewriteArch(e, name, rewritten, b.DeploymentTarget, b.archive.Dir); err != nil {
			return nil, err
		}
		out[i] = rewritten
	}
	return out, nil
}

// writeLinkFileList writes one resolved path per line to path. A
// relative entry (a bitcode or object job's output basename) is
// resolved against dir; an already absolute entry (a rewritten LTO
// input or a nested bundle's output) is written as-is.
func writeLinkFileList(path, dir string, entries []string) error {
	var b strings.Builder
	for _, entry := range entries {
		resolved := entry
		if !filepath.IsAbs(entry) {
			resolved = filepath.Join(dir, entry)
		}
		b.WriteString(resolved)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return diag.Wrap(diag.ArchiveBroken, err, "writing link file list %s", path)
	}
	return nil
}

package bundle

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/appstore-toolchain/bitcode-rebuild/internal/diag"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/env"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/jobs"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/toolcmd"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/translate"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/verify"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/xar"
)

// linkInputs is the three input classes the final link command
// assembles (the final link's ordering guarantees): bitcode/object outputs
// in sorted basename order, LTO TOC entries in document order (not yet
// retargeted; link.go does that), and nested-bundle outputs in the
// order their sequential recursion completed.
type linkInputs struct {
	Sorted []string
	LTO    []xar.File
	Nested []string
}

// runCompileJobs constructs and runs every TOC entry's compile job.
// Bitcode and Object jobs run in parallel on
// the shared worker pool; Bundle entries recurse strictly sequentially
// on the calling goroutine. LTO entries are only collected here; they
// are retargeted and appended to the linker invocation in link.go.
func (b *Bundle) runCompileJobs(e *env.ToolEnv) (linkInputs, error) {
	bitcodeFiles := b.archive.FilesOfType("Bitcode")
	objectFiles := b.archive.FilesOfType("Object")
	bundleFiles := b.archive.FilesOfType("Bundle")
	ltoFiles := b.archive.FilesOfType("LTO")

	for _, f := range bitcodeFiles {
		if f.Swift != nil {
			b.ContainsSwift = true
			break
		}
	}

	var jobList []*jobs.CompileJob
	for _, f := range bitcodeFiles {
		jobList = append(jobList, b.newBitcodeJob(e, f))
	}
	for _, f := range objectFiles {
		jobList = append(jobList, b.newObjectJob(e, f))
	}
	if err := e.Pool.RunParallel(jobList); err != nil {
		return linkInputs{}, err
	}

	var nested []string
	if len(bundleFiles) > 0 {
		var nestedJobs []*jobs.CompileJob
		var children []*Bundle
		for _, f := range bundleFiles {
			input := b.archive.Path(f.Name)
			output := input + ".o"
			child := New(input, output, b.Arch)
			children = append(children, child)
			nestedJobs = append(nestedJobs, &jobs.CompileJob{
				Description: "nested bundle " + f.Name,
				Run: func(job *jobs.CompileJob) error {
					if err := child.Run(e); err != nil {
						return err
					}
					job.Result = child.Output
					return nil
				},
			})
		}
		if err := jobs.RunSequential(nestedJobs); err != nil {
			return linkInputs{}, err
		}
		for _, child := range children {
			nested = append(nested, child.Output)
		}
	}

	sorted := make([]string, 0, len(jobList))
	for _, job := range jobList {
		sorted = append(sorted, filepath.Base(job.Result))
	}
	sort.Strings(sorted)

	return linkInputs{Sorted: sorted, LTO: ltoFiles, Nested: nested}, nil
}

// newBitcodeJob builds the compile job for one Bitcode TOC entry,
// dispatching to the clang or swift frontend reconstruction
// recorded in its TOC metadata.
func (b *Bundle) newBitcodeJob(e *env.ToolEnv, f xar.File) *jobs.CompileJob {
	output := f.Name + ".o"
	return &jobs.CompileJob{
		Description: "bitcode " + f.Name,
		Run: func(job *jobs.CompileJob) error {
			var res toolcmd.Result
			var err error
			switch {
			case f.Clang != nil:
				res, err = b.compileClangBitcode(e, f, output)
			case f.Swift != nil:
				res, err = b.compileSwiftBitcode(e, f, output)
			default:
				err = diag.New(diag.ArchiveBroken, "cannot determine bitcode frontend for %s", f.Name)
			}
			job.ExitCode = res.ExitCode
			job.Output = res.Output
			if err != nil {
				return err
			}
			job.Result = output
			return nil
		},
	}
}

// compileClangBitcode reconstructs and runs a C-frontend bitcode
// recompile: upgrade the embedded argv, retarget its triple under
// translate-watchos, verify the result against the C-frontend
// whitelist, and append the watch-only inline-asm restriction, then
// invoke `clang -cc1 -x ir <name> -o <name>.o` with cwd set to the
// archive's extraction directory (the Clang/name argv entries are
// relative to that directory).
func (b *Bundle) compileClangBitcode(e *env.ToolEnv, f xar.File, output string) (toolcmd.Result, error) {
	opts := rawText(f.Clang.Cmd)
	opts = translate.ClangCC1Upgrade(opts, b.Arch)
	if b.isTranslateWatchOS(e) {
		opts = translate.ClangTranslateTriple(opts)
	}
	if ok, reason := verify.NewClangVerifier().Verify(opts); !ok {
		return toolcmd.Result{}, diag.New(diag.OptionRejected, "clang option verification failed for bitcode %s (%s)", f.Name, reason)
	}
	if platform, ok := e.Platform(); ok && platform.IsWatch() {
		opts = append(opts, "-fno-gnu-inline-asm")
	}
	return toolcmd.Clang(e, f.Name, output, b.archive.Dir, "ir", opts)
}

// compileSwiftBitcode handles a Swift-frontend bitcode entry: either
// cross-translated through the C frontend (compile-swift-as-c mode) or
// recompiled natively through swiftc.
func (b *Bundle) compileSwiftBitcode(e *env.ToolEnv, f xar.File, output string) (toolcmd.Result, error) {
	if b.CompileSwiftAsC {
		return b.compileSwiftAsClang(e, f, output)
	}
	return b.compileSwiftNative(e, f, output)
}

// compileSwiftAsClang upgrades the embedded Swift argv, verifies it
// against the Swift whitelist, cross-translates it to clang spelling,
// applies the force-optimization rewrite and watch triple retargeting
// in their clang-spelled form after cross-translation, and invokes clang directly
// (the Swift source still carries its original extension; clang's -x
// ir dispatch does not care about it).
func (b *Bundle) compileSwiftAsClang(e *env.ToolEnv, f xar.File, output string) (toolcmd.Result, error) {
	opts := rawText(f.Swift.Cmd)
	opts = translate.SwiftUpgrade(opts, b.Arch)
	if ok, reason := verify.NewSwiftVerifier().Verify(opts); !ok {
		return toolcmd.Result{}, diag.New(diag.OptionRejected, "swift option verification failed for bitcode %s (%s)", f.Name, reason)
	}
	opts = translate.SwiftTranslateToClang(opts)
	if b.ForceOptimizeSwift {
		opts = translate.ClangAddOptimization(opts)
	}
	if b.isTranslateWatchOS(e) {
		opts = translate.ClangTranslateTriple(opts)
	}
	return toolcmd.Clang(e, f.Name, output, b.archive.Dir, "ir", opts)
}

// compileSwiftNative renames the TOC entry to bear a .bc extension (the
// Swift compiler dispatches on file extension, unlike clang's explicit
// -x flag), verifies its raw argv against the Swift whitelist, applies
// the force-optimization rewrite and watch retargeting in Swift
// spelling, and appends the Swift-async frame-pointer flag when that
// patch applies.
func (b *Bundle) compileSwiftNative(e *env.ToolEnv, f xar.File, output string) (toolcmd.Result, error) {
	bcName := f.Name + ".bc"
	if err := os.Rename(b.archive.Path(f.Name), b.archive.Path(bcName)); err != nil {
		return toolcmd.Result{}, diag.Wrap(diag.ArchiveBroken, err, "renaming swift bitcode input %s", f.Name)
	}

	opts := rawText(f.Swift.Cmd)
	if ok, reason := verify.NewSwiftVerifier().Verify(opts); !ok {
		return toolcmd.Result{}, diag.New(diag.OptionRejected, "swift option verification failed for bitcode %s (%s)", f.Name, reason)
	}
	if b.ForceOptimizeSwift {
		opts = translate.SwiftAddOptimization(opts)
	}
	if b.isTranslateWatchOS(e) {
		opts = translate.SwiftTranslateTriple(opts)
	}
	if b.SwiftAsyncPatch {
		opts = append(opts, "-swift-async-frame-pointer=never")
	}
	return toolcmd.Swift(e, bcName, output, b.archive.Dir, opts)
}

// newObjectJob builds the plain-copy job for an Object TOC entry: a
// CopyFile invocation that runs unconditionally, since copying is not
// gated by verify mode the way a compile/link invocation is.
func (b *Bundle) newObjectJob(e *env.ToolEnv, f xar.File) *jobs.CompileJob {
	output := f.Name + ".o"
	return &jobs.CompileJob{
		Description: "object " + f.Name,
		Run: func(job *jobs.CompileJob) error {
			res, err := toolcmd.CopyFile(e, f.Name, output, b.archive.Dir)
			job.ExitCode = res.ExitCode
			job.Output = res.Output
			if err != nil {
				return err
			}
			job.Result = output
			return nil
		},
	}
}

// rawText converts a Frontend's <cmd> list (already plain strings after
// xar.Open's XML decode) into a fresh slice safe for in-place mutation
// by the translate package's upgrade/translate functions (empty-element
// handling is already done by encoding/xml, which decodes a childless
// element to "").
func rawText(cmd []string) []string {
	out := make([]string, len(cmd))
	copy(out, cmd)
	return out
}

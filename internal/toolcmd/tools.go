// Package toolcmd builds and runs the concrete Apple-toolchain
// invocations the rebuild engine needs: clang -cc1
// and swiftc -frontend recompiles, the final ld link, lipo slice
// manipulation, xar/segedit extraction, and the dsymutil/strip
// post-processing steps. Each wrapper builds a fixed argv shape over
// *env.ToolEnv and runs it through the shared Runner.
package toolcmd

import (
	"github.com/appstore-toolchain/bitcode-rebuild/internal/env"
)

// Result is what every tool invocation below returns: the merged
// output and the exit code.
type Result struct {
	Output   string
	ExitCode int
}

// Clang runs `clang -cc1 <args> -x <inputType> <input> -o <output>`,
// gated by verify mode.
func Clang(e *env.ToolEnv, input, output, workingDir, inputType string, args []string) (Result, error) {
	clang, err := e.GetTool("clang")
	if err != nil {
		return Result{}, err
	}
	argv := append([]string{clang, "-cc1"}, args...)
	argv = append(argv, "-x", inputType, input, "-o", output)
	out, code, err := e.Runner.RunCompile(argv, workingDir)
	return Result{Output: out, ExitCode: code}, err
}

// Swift runs `swiftc -frontend <args> <input> -o <output>`, gated by
// verify mode.
func Swift(e *env.ToolEnv, input, output, workingDir string, args []string) (Result, error) {
	swiftc, err := e.GetTool("swiftc")
	if err != nil {
		return Result{}, err
	}
	argv := append([]string{swiftc, "-frontend"}, args...)
	argv = append(argv, input, "-o", output)
	out, code, err := e.Runner.RunCompile(argv, workingDir)
	return Result{Output: out, ExitCode: code}, err
}

// Ld runs the final link: `ld <args> -o <output>`, gated by verify
// mode. On failure it attempts to deobfuscate any __hidden# symbol
// references in the captured output before returning the error.
func Ld(e *env.ToolEnv, output, workingDir string, args []string) (Result, error) {
	ld, err := e.GetTool("ld")
	if err != nil {
		return Result{}, err
	}
	argv := append([]string{ld}, args...)
	argv = append(argv, "-o", output)
	out, code, err := e.Runner.RunCompile(argv, workingDir)
	if err != nil && e.Deobf != nil {
		if translated, ok := e.Deobf.TryDeobfuscate(out); ok {
			if e.Log != nil {
				e.Log.Info("Translation of the obfuscated symbols using the bitcode symbol map:\n\n%s", translated)
			}
		}
	}
	return Result{Output: out, ExitCode: code}, err
}

// lipo runs `lipo <args>`, unconditionally: lipo invocations are
// information/slice-manipulation commands, not gated by verify mode.
func lipo(e *env.ToolEnv, workingDir string, args []string) (Result, error) {
	tool, err := e.GetTool("lipo")
	if err != nil {
		return Result{}, err
	}
	argv := append([]string{tool}, args...)
	out, code, err := e.Runner.Run(argv, workingDir)
	return Result{Output: out, ExitCode: code}, err
}

// MachoInfo runs `lipo -info <input>`. A nonzero exit is expected for
// a non-Mach-O input and is not itself an error; callers inspect
// Output.
func MachoInfo(e *env.ToolEnv, input, workingDir string) (Result, error) {
	res, _ := lipo(e, workingDir, []string{"-info", input})
	return res, nil
}

// VerifyArch runs `lipo <input> -verify_arch <arch>`.
func VerifyArch(e *env.ToolEnv, input, arch, workingDir string) (Result, error) {
	return lipo(e, workingDir, []string{input, "-verify_arch", arch})
}

// ReplaceSlice runs `lipo <input> -replace <arch> <file> -output <input>`.
func ReplaceSlice(e *env.ToolEnv, input, arch, file, workingDir string) (Result, error) {
	return lipo(e, workingDir, []string{input, "-replace", arch, file, "-output", input})
}

// AddSlice runs `lipo -create <input> <file> -output <input>`.
func AddSlice(e *env.ToolEnv, input, file, workingDir string) (Result, error) {
	return lipo(e, workingDir, []string{"-create", input, file, "-output", input})
}

// ExtractSlice runs `lipo <input> -thin <arch> -output <output>`.
func ExtractSlice(e *env.ToolEnv, input, arch, output, workingDir string) (Result, error) {
	return lipo(e, workingDir, []string{input, "-thin", arch, "-output", output})
}

// LipoCreate runs `lipo -create <inputs...> -output <output>`.
func LipoCreate(e *env.ToolEnv, inputs []string, output, workingDir string) (Result, error) {
	args := append([]string{"-create"}, inputs...)
	args = append(args, "-output", output)
	return lipo(e, workingDir, args)
}

// CopyFile runs `/usr/bin/ditto <src> <dst>`, preserving
// resource-fork/extended-attribute metadata the way a plain file copy
// would not.
func CopyFile(e *env.ToolEnv, src, dst, workingDir string) (Result, error) {
	out, code, err := e.Runner.Run([]string{"/usr/bin/ditto", src, dst}, workingDir)
	return Result{Output: out, ExitCode: code}, err
}

// ExtractXAR runs `segedit <input> -extract __LLVM __bundle <output>`.
// A nonzero exit is expected for a Mach-O slice with no embedded
// bitcode section and is not itself an error.
func ExtractXAR(e *env.ToolEnv, input, output, workingDir string) (Result, error) {
	segedit, err := e.GetTool("segedit")
	if err != nil {
		return Result{}, err
	}
	out, code, err := e.Runner.Run([]string{segedit, input, "-extract", "__LLVM", "__bundle", output}, workingDir)
	if err != nil {
		return Result{Output: out, ExitCode: code}, nil
	}
	return Result{Output: out, ExitCode: code}, nil
}

// Dsymutil runs `dsymutil <input> -o <output>`.
func Dsymutil(e *env.ToolEnv, input, output, workingDir string) (Result, error) {
	tool, err := e.GetTool("dsymutil")
	if err != nil {
		return Result{}, err
	}
	out, code, err := e.Runner.Run([]string{tool, input, "-o", output}, workingDir)
	return Result{Output: out, ExitCode: code}, err
}

// DsymMap runs `dsymutil --symbol-map <mapfile> <input>`.
func DsymMap(e *env.ToolEnv, input, mapfile, workingDir string) (Result, error) {
	tool, err := e.GetTool("dsymutil")
	if err != nil {
		return Result{}, err
	}
	out, code, err := e.Runner.Run([]string{tool, "--symbol-map", mapfile, input}, workingDir)
	return Result{Output: out, ExitCode: code}, err
}

// StripSymbols runs `strip <input>`.
func StripSymbols(e *env.ToolEnv, input, workingDir string) (Result, error) {
	tool, err := e.GetTool("strip")
	if err != nil {
		return Result{}, err
	}
	out, code, err := e.Runner.Run([]string{tool, input}, workingDir)
	return Result{Output: out, ExitCode: code}, err
}

// StripDebug runs `strip -Sx <input>` (or -STx when stripSwift is set,
// the supplemented feature that also strips Swift reflection metadata
// symbols).
func StripDebug(e *env.ToolEnv, input string, stripSwift bool, workingDir string) (Result, error) {
	tool, err := e.GetTool("strip")
	if err != nil {
		return Result{}, err
	}
	flags := "-Sx"
	if stripSwift {
		flags = "-STx"
	}
	out, code, err := e.Runner.Run([]string{tool, flags, input}, workingDir)
	return Result{Output: out, ExitCode: code}, err
}

// GetUUID runs `dwarfdump -u <input>`.
func GetUUID(e *env.ToolEnv, input, workingDir string) (Result, error) {
	tool, err := e.GetTool("dwarfdump")
	if err != nil {
		return Result{}, err
	}
	out, code, err := e.Runner.Run([]string{tool, "-u", input}, workingDir)
	return Result{Output: out, ExitCode: code}, err
}

// RewriteArch runs
// `clang -target arm64_32-apple-watchos<deploymentTarget> -c -Xclang
// -disable-llvm-passes -emit-llvm -x ir <input> -o <output>`, used to
// retarget an LTO input file's embedded triple during the armv7k ->
// arm64_32 watch migration. deploymentTarget may be empty, in which
// case the triple carries no deployment-target suffix.
func RewriteArch(e *env.ToolEnv, input, output, deploymentTarget, workingDir string) (Result, error) {
	clang, err := e.GetTool("clang")
	if err != nil {
		return Result{}, err
	}
	triple := "arm64_32-apple-watchos" + deploymentTarget
	argv := []string{
		clang, "-target", triple, "-c", "-Xclang", "-disable-llvm-passes",
		"-emit-llvm", "-x", "ir", input, "-o", output,
	}
	out, code, err := e.Runner.Run(argv, workingDir)
	return Result{Output: out, ExitCode: code}, err
}

// Command bitcode-rebuild recompiles a Mach-O binary's embedded bitcode
// back into native code, one architecture slice at a time, and
// reassembles the result.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/appstore-toolchain/bitcode-rebuild/internal/bundle"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/diag"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/dsym"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/env"
	"github.com/appstore-toolchain/bitcode-rebuild/internal/macho"
)

var Version = "dev"

var opts struct {
	output             string
	extraToolPaths     []string
	extraLibraryPaths  []string
	sdkPathOverride    string
	generateDsym       string
	libraryList        string
	symbolMap          string
	stripSwiftSymbols  bool
	translateWatchOS   bool
	saveTemps          bool
	verbose            bool
	verifyOnly         bool
	threads            int
	altLTOLibraryPath  string
	compileSwiftAsC    bool
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "bitcode-rebuild <input-macho-file>",
		Short:   "Recompile a Mach-O binary from its embedded bitcode",
		Long:    "bitcode-rebuild extracts the bitcode bundle embedded in each architecture slice of a Mach-O binary, recompiles and relinks it, and reassembles the architectures into the output binary.",
		Version: Version,
		Args:    cobra.ExactArgs(1),
		RunE:    run,
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "a.out", "path to write the rebuilt binary to")
	flags.StringSliceVarP(&opts.extraToolPaths, "tool", "t", nil, "extra directory to search for tools before the platform SDK (repeatable)")
	flags.StringSliceVarP(&opts.extraLibraryPaths, "library", "L", nil, "extra directory to search for libraries (repeatable)")
	flags.StringVar(&opts.sdkPathOverride, "sdk", "", "override the resolved SDK path")
	flags.StringVar(&opts.generateDsym, "generate-dsym", "", "generate a dSYM bundle at this path after a successful rebuild")
	flags.StringVar(&opts.libraryList, "library-list", "", "file of one absolute library path per line, consulted before the default dylib search path")
	flags.StringVar(&opts.symbolMap, "symbol-map", "", "bcsymbolmap file or directory, applied to the generated dSYM (requires --generate-dsym)")
	flags.BoolVar(&opts.stripSwiftSymbols, "strip-swift-symbols", false, "also strip Swift reflection metadata from non-executable outputs")
	flags.BoolVar(&opts.translateWatchOS, "translate-watchos", false, "retarget armv7k bitcode to arm64_32 during rebuild")
	flags.BoolVar(&opts.saveTemps, "save-temps", false, "keep scratch directories instead of removing them")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug-level logging")
	flags.BoolVar(&opts.verifyOnly, "verify", false, "verify the rebuild without compiling or linking")
	flags.IntVarP(&opts.threads, "threads", "j", 1, "number of compile jobs to run in parallel")
	flags.StringVar(&opts.altLTOLibraryPath, "liblto", "", "override the libLTO.dylib used for LTO codegen")
	flags.BoolVar(&opts.compileSwiftAsC, "compile-swift-with-clang", false, "cross-translate Swift bitcode through the C frontend instead of swiftc")
	_ = flags.MarkHidden("compile-swift-with-clang")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	input := args[0]
	if _, err := os.Stat(input); err != nil {
		return diag.New(diag.ConfigInvalid, "input file %s does not exist", input)
	}
	if opts.symbolMap != "" && opts.generateDsym == "" {
		return diag.New(diag.ConfigInvalid, "--symbol-map requires --generate-dsym")
	}
	if opts.symbolMap != "" {
		if _, err := os.Stat(opts.symbolMap); err != nil {
			return diag.New(diag.ConfigInvalid, "--symbol-map path %s does not exist", opts.symbolMap)
		}
	}

	cfg := &env.BuildConfig{
		OutputPath:              opts.output,
		ExtraToolPaths:          opts.extraToolPaths,
		ExtraLibrarySearchPaths: opts.extraLibraryPaths,
		SDKPathOverride:         opts.sdkPathOverride,
		LibraryListPath:         opts.libraryList,
		SymbolMapPath:           opts.symbolMap,
		DsymOutputPath:          opts.generateDsym,
		StripSwiftSymbols:       opts.stripSwiftSymbols,
		VerifyOnly:              opts.verifyOnly,
		SaveTemps:               opts.saveTemps,
		TranslateWatchOS:        opts.translateWatchOS,
		CompileSwiftAsC:         opts.compileSwiftAsC,
		Verbose:                 opts.verbose,
		Workers:                 opts.threads,
		AltLTOLibraryPath:       opts.altLTOLibraryPath,
	}

	log := diag.NewLogger(opts.verbose, opts.verifyOnly)
	e := env.NewToolEnv(cfg, log)
	defer e.Cleanup()

	if err := rebuild(e, input); err != nil {
		log.Error("%s", err)
		return err
	}
	return nil
}

// rebuild drives one end-to-end run: open the input, rebuild each
// architecture slice's bundle, reassemble, and (unless --verify) run
// the dSYM/strip post-processing pipeline.
func rebuild(e *env.ToolEnv, input string) error {
	inputMacho, err := macho.Open(e, input)
	if err != nil {
		return err
	}

	containsSymbols := make([]bool, 0, len(inputMacho.Archs))
	for _, arch := range inputMacho.Archs {
		e.SetUUID(inputMacho.UUID[arch])

		xarPath, err := inputMacho.GetXAR(e, arch)
		if err != nil {
			return err
		}

		output := filepath.Join(os.TempDir(), fmt.Sprintf("%s.%s.rebuilt.o", inputMacho.Name, arch))
		b := bundle.New(xarPath, output, arch)
		if err := b.Run(e); err != nil {
			return err
		}

		inputMacho.AddOutputSlice(b.Arch, b.Output, b.IsExecutable)
		containsSymbols = append(containsSymbols, b.ContainsSymbols())
	}

	if e.Config.DsymOutputPath != "" && !dsym.AnySliceContainsSymbols(containsSymbols) && e.Config.SymbolMapPath == "" {
		e.Log.Warning("generating dSYM but no slice retained symbols and no --symbol-map was given")
	}

	if e.Config.VerifyOnly {
		e.Log.Info("verification successful")
		return nil
	}

	if err := inputMacho.InstallOutput(e, e.Config.OutputPath); err != nil {
		return err
	}

	if e.Config.DsymOutputPath != "" {
		if err := dsym.Generate(e, e.Config.OutputPath, e.Config.DsymOutputPath); err != nil {
			return err
		}
		retargeted := make(map[string]string)
		if e.Config.TranslateWatchOS {
			for _, arch := range inputMacho.Archs {
				if arch == "armv7k" {
					retargeted[arch] = "arm64_32"
				}
			}
		}
		if err := dsym.WriteUUIDMap(e.Config.DsymOutputPath, inputMacho.Archs, inputMacho.UUID, inputMacho.OutputUUID, retargeted); err != nil {
			return err
		}
		if e.Config.SymbolMapPath != "" {
			if err := dsym.ApplySymbolMap(e, e.Config.DsymOutputPath, e.Config.SymbolMapPath); err != nil {
				return err
			}
		}
	}

	return dsym.Strip(e, e.Config.OutputPath, inputMacho.IsExecutable(), e.Config.StripSwiftSymbols)
}

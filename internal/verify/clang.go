package verify

// NewClangVerifier builds the whitelist for clang -cc1 recompile
// invocations: -emit-obj is required, and the rest cover optimization,
// codegen, and floating-point flags that a recompiled bitcode frontend
// invocation may legally carry.
func NewClangVerifier() *OptionVerifier {
	return NewOptionVerifier("clang", map[string]OptionSpec{
		"-emit-obj":              {Arity: 0, Required: true},
		"-triple":                {Arity: 1},
		"-O":                     {Arity: 1},
		"-disable-llvm-optzns":   {Arity: 0},
		"-disable-llvm-passes":   {Arity: 0},
		"-mdisable-tail-calls":   {Arity: 0},
		"-mlimit-float-precision": {Arity: 0},
		"-menable-no-infs":       {Arity: 0},
		"-menable-no-nans":       {Arity: 0},
		"-fmath-errno":           {Arity: 0},
		"-menable-unsafe-fp-math": {Arity: 0},
		"-fno-signed-zeros":      {Arity: 0},
		"-freciprocal-math":      {Arity: 0},
		"-ffp-contract":          {Arity: 1},
		"-target-abi":            {Arity: 1},
		"-mfloat-abi":            {Arity: 1},
		"-mllvm":                 {Arity: 1},
	})
}

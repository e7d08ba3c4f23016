package verify

// NewSwiftVerifier builds the whitelist for swiftc -frontend recompile
// invocations. -Xllvm is restricted to the single value the Swift
// driver is known to emit
// (-aarch64-use-tbi) — anything else is a sign the embedded bitcode
// carries an LLVM flag this engine was never taught to trust.
func NewSwiftVerifier() *OptionVerifier {
	return NewOptionVerifier("swift", map[string]OptionSpec{
		"-frontend":            {Arity: 0},
		"-emit-object":         {Arity: 0},
		"-target":              {Arity: 1},
		"-target-cpu":          {Arity: 1},
		"-Ounchecked":          {Arity: 0},
		"-Onone":               {Arity: 0},
		"-Osize":               {Arity: 0},
		"-Oplayground":         {Arity: 0},
		"-O":                   {Arity: 0},
		"-c":                   {Arity: 0},
		"-parse-stdlib":        {Arity: 0},
		"-module-name":         {Arity: 1},
		"-disable-llvm-optzns": {Arity: 0},
		"-Xllvm":               {Arity: 1, Choices: []string{"-aarch64-use-tbi"}},
	})
}

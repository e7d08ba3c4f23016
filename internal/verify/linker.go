package verify

// LinkerVerifier wraps the generic OptionVerifier to special-case -e,
// the entry-symbol flag: entry symbols are arbitrary and too general
// to whitelist, so the -e/value pair is stripped out of the argv
// before verifying the rest.
type LinkerVerifier struct {
	inner *OptionVerifier
}

// NewLinkerVerifier builds the whitelist for the final ld invocation.
func NewLinkerVerifier() *LinkerVerifier {
	return &LinkerVerifier{inner: NewOptionVerifier("ld", map[string]OptionSpec{
		"-execute":                       {Arity: 0},
		"-dylib":                         {Arity: 0},
		"-r":                             {Arity: 0},
		"-compatibility_version":         {Arity: 1},
		"-current_version":               {Arity: 1},
		"-install_name":                  {Arity: 1},
		"-ios_version_min":               {Arity: 1},
		"-ios_simulator_version_min":     {Arity: 1},
		"-watchos_version_min":           {Arity: 1},
		"-watchos_simulator_version_min": {Arity: 1},
		"-macosx_version_min":            {Arity: 1},
		"-tvos_version_min":              {Arity: 1},
		"-tvos_simulator_version_min":    {Arity: 1},
		"-rpath":                         {Arity: 1},
		"-objc_abi_version":              {Arity: 1},
		"-executable_path":               {Arity: 1},
		"-exported_symbols_list":         {Arity: 1},
		"-unexported_symbols_list":       {Arity: 1},
		"-order_file":                    {Arity: 1},
		"-source_version":                {Arity: 1},
		"-no_implicit_dylibs":            {Arity: 0},
		"-dead_strip":                    {Arity: 0},
		"-export_dynamic":                {Arity: 0},
		"-application_extension":         {Arity: 0},
		"-add_source_version":            {Arity: 0},
		"-no_objc_category_merging":      {Arity: 0},
		"-sectcreate":                    {Arity: 3},
		"-sectalign":                     {Arity: 3},
	})}
}

// Verify strips the first "-e <name>" pair, if present, then checks
// the rest against the whitelist.
func (v *LinkerVerifier) Verify(args []string) (bool, string) {
	stripped := args
	for i, tok := range args {
		if tok == "-e" {
			stripped = make([]string, 0, len(args)-2)
			stripped = append(stripped, args[:i]...)
			if i+2 <= len(args) {
				stripped = append(stripped, args[i+2:]...)
			}
			break
		}
	}
	return v.inner.Verify(stripped)
}

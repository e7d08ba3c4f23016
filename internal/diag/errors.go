// Package diag holds the diagnostic plumbing shared across the rebuild
// engine: error kinds, the error:/warning: logger, and the bitcode
// symbol-map deobfuscator.
package diag

import "fmt"

// Kind identifies one of the fatal error categories from the failure
// taxonomy. Every fatal error raised by the engine carries one of these
// so callers can branch with errors.As without string matching.
type Kind int

const (
	ConfigInvalid Kind = iota
	PlatformUnset
	PlatformUnknown
	PlatformUnsupported
	BundleVersionUnsupported
	ArchiveBroken
	OptionRejected
	ToolNotFound
	LibraryNotFound
	ToolRunFailed
	RetryExhausted
)

func (k Kind) String() string {
	switch k {
	case ConfigInvalid:
		return "ConfigInvalid"
	case PlatformUnset:
		return "PlatformUnset"
	case PlatformUnknown:
		return "PlatformUnknown"
	case PlatformUnsupported:
		return "PlatformUnsupported"
	case BundleVersionUnsupported:
		return "BundleVersionUnsupported"
	case ArchiveBroken:
		return "ArchiveBroken"
	case OptionRejected:
		return "OptionRejected"
	case ToolNotFound:
		return "ToolNotFound"
	case LibraryNotFound:
		return "LibraryNotFound"
	case ToolRunFailed:
		return "ToolRunFailed"
	case RetryExhausted:
		return "RetryExhausted"
	default:
		return "Unknown"
	}
}

// Error is a fatal, bundle-local error tagged with a Kind so callers
// can discriminate failure classes with errors.Is. It
// always carries a Kind and a human-readable message; ToolRunFailed
// errors additionally carry the failing argv and captured output.
type Error struct {
	Kind    Kind
	Message string
	Argv    []string
	Output  string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a plain diagnostic error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a diagnostic error of the given kind around an
// underlying cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// ToolFailure builds a ToolRunFailed error carrying the failing argv
// and its captured combined stdout+stderr.
func ToolFailure(argv []string, output string, err error) *Error {
	return &Error{
		Kind:    ToolRunFailed,
		Message: fmt.Sprintf("command failed: %v", argv),
		Argv:    argv,
		Output:  output,
		Err:     err,
	}
}

// Is lets errors.Is match on Kind alone, e.g. errors.Is(err,
// &diag.Error{Kind: diag.ToolNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

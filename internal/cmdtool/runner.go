// Package cmdtool implements the Command Runner: a
// uniform wrapper around subprocess execution that records argv,
// working directory, captured combined stdout+stderr, exit code, and
// timing, with a verify-mode no-op seam for compile/link invocations
// and a TESTING-env-var seam for the whole test suite.
package cmdtool

import (
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/appstore-toolchain/bitcode-rebuild/internal/diag"
)

// Runner executes subprocesses on behalf of every tool wrapper in the
// engine. verifyMode, when set, turns RunCompile into a no-op; Run
// (used for information-only probes and archive extraction) always
// executes regardless of verify mode.
type Runner struct {
	verifyMode bool
	logger     *diag.Logger
}

// NewRunner builds a Runner. logger may be nil, in which case argv/
// timing are not recorded (used by tests).
func NewRunner(verifyMode bool, logger *diag.Logger) *Runner {
	return &Runner{verifyMode: verifyMode, logger: logger}
}

// VerifyMode reports whether this runner is in verify-only mode.
func (r *Runner) VerifyMode() bool {
	return r.verifyMode
}

// Run executes argv in cwd unconditionally: this is for
// information-only commands (architecture probes, version probes,
// archive extraction) that must still run in verify mode. stdout and
// stderr are merged into a single captured stream. If the TESTING
// environment variable is set, the subprocess is skipped and a
// synthetic success is returned — the testability seam.
func (r *Runner) Run(argv []string, cwd string) (output string, exitCode int, err error) {
	if len(argv) == 0 {
		return "", 0, diag.New(diag.ConfigInvalid, "empty command")
	}
	start := time.Now()
	if testingMode() {
		if r.logger != nil {
			r.logger.Debugf("skipping (TESTING): %s", strings.Join(argv, " "))
		}
		return "Skipped for testing mode.", 0, nil
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cwd
	out, runErr := cmd.CombinedOutput()
	elapsed := time.Since(start)
	output = string(out)
	if r.logger != nil {
		r.logger.Debugf("%s", strings.Join(argv, " "))
		r.logger.CommandTiming(argv, elapsed)
	}
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
		return output, exitCode, diag.ToolFailure(argv, output, runErr)
	}
	return output, 0, nil
}

// RunCompile executes argv like Run, except that in verify mode it is
// skipped entirely and a synthetic success is returned without ever
// touching the filesystem/subprocess layer — this is how compile and
// link invocations become no-ops under --verify while archive
// extraction and probes (which call Run) still execute.
func (r *Runner) RunCompile(argv []string, cwd string) (output string, exitCode int, err error) {
	if r.verifyMode {
		if r.logger != nil {
			r.logger.Debugf("skipping (verify mode): %s", strings.Join(argv, " "))
		}
		return "", 0, nil
	}
	return r.Run(argv, cwd)
}

func testingMode() bool {
	v := os.Getenv("TESTING")
	return v != "" && v != "0" && strings.ToLower(v) != "false"
}

// Package jobs implements the compile-job dependency model and the
// parallel/sequential scheduler used by the bundle rebuild engine: a
// flat list of independent compile jobs fanned out across a bounded
// worker pool, plus a sequential runner for nested bundles that must
// not themselves submit concurrently to that pool.
package jobs

import (
	"fmt"
	"sync"
	"time"
)

// CompileJob is a single pending tool invocation: a compiler run, a
// link, a file copy, or (recursively) a nested bundle rebuild.
type CompileJob struct {
	// Description is a short human-readable label, used in logging and
	// in error messages.
	Description string

	// Result is the path to this job's output, set by Run on success.
	// Unset (empty) before the job has run.
	Result string

	// Run performs the job's work. It is called at most once.
	Run func(job *CompileJob) error

	// ExitCode and Output are populated once the job's underlying
	// subprocess (if any) has completed; once Run returns, exit code
	// and captured output are set.
	ExitCode int
	Output   string

	// Elapsed is the wall-clock time the job's Run took.
	Elapsed time.Duration

	mu  sync.Mutex
	ran bool
	err error
}

// RunOnce invokes Run exactly once and remembers its result, so a job
// accidentally reachable from two parallel branches only executes a
// single time.
func (j *CompileJob) RunOnce() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.ran {
		return j.err
	}
	start := time.Now()
	j.err = j.Run(j)
	j.Elapsed = time.Since(start)
	j.ran = true
	return j.err
}

// CommandError wraps a failed subprocess invocation with the action
// that was attempted and the path involved.
type CommandError struct {
	Action string
	Path   string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Action, e.Path, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

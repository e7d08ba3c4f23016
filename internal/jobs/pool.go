package jobs

import (
	"golang.org/x/sync/errgroup"
)

// Pool is the process-wide worker pool of configurable width used for
// parallel compile-job execution. It is
// created once by the Tool Environment and shared across the entire
// recursion; nested bundles must never create their own Pool or submit
// to it concurrently with their parent (see the `internal/jobs` entry
// of DESIGN.md).
type Pool struct {
	limit int
}

// NewPool builds a worker pool with the given width. A width <= 0 is
// treated as 1 (fully sequential).
func NewPool(width int) *Pool {
	if width <= 0 {
		width = 1
	}
	return &Pool{limit: width}
}

// RunParallel submits every job to the pool and waits for all of them,
// capped at the pool's configured width via errgroup.SetLimit. A
// failing job does not stop the others from being started: every job
// runs, and the first error is returned once all have finished. A
// per-job ToolRunFailed aborts the entire enclosing BundleRun.
func (p *Pool) RunParallel(jobList []*CompileJob) error {
	var g errgroup.Group
	g.SetLimit(p.limit)
	for _, job := range jobList {
		job := job
		g.Go(func() error {
			return job.RunOnce()
		})
	}
	return g.Wait()
}

// RunSequential runs each job to completion, in order, on the calling
// goroutine, stopping at the first failure. This is how nested bundle
// jobs are run: never through the pool, because a
// nested bundle itself submits compile jobs to the same shared pool and
// concurrent nesting would risk pool exhaustion/deadlock.
func RunSequential(jobList []*CompileJob) error {
	for _, job := range jobList {
		if err := job.RunOnce(); err != nil {
			return err
		}
	}
	return nil
}

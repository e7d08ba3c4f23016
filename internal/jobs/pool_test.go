package jobs

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestRunParallelRunsAllJobs(t *testing.T) {
	var count int32
	var jobList []*CompileJob
	for i := 0; i < 5; i++ {
		jobList = append(jobList, &CompileJob{Run: func(j *CompileJob) error {
			atomic.AddInt32(&count, 1)
			return nil
		}})
	}
	if err := NewPool(3).RunParallel(jobList); err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Fatalf("expected 5 jobs to run, got %d", count)
	}
}

func TestRunParallelPropagatesFirstError(t *testing.T) {
	wantErr := errors.New("compile failed")
	jobList := []*CompileJob{
		{Run: func(j *CompileJob) error { return nil }},
		{Run: func(j *CompileJob) error { return wantErr }},
	}
	if err := NewPool(2).RunParallel(jobList); err != wantErr {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

func TestNewPoolTreatsNonPositiveWidthAsOne(t *testing.T) {
	if p := NewPool(0); p.limit != 1 {
		t.Fatalf("expected width 0 to default to 1, got %d", p.limit)
	}
	if p := NewPool(-4); p.limit != 1 {
		t.Fatalf("expected negative width to default to 1, got %d", p.limit)
	}
}

func TestRunSequentialStopsAtFirstFailure(t *testing.T) {
	var ran []int
	wantErr := errors.New("second job failed")
	jobList := []*CompileJob{
		{Run: func(j *CompileJob) error { ran = append(ran, 1); return nil }},
		{Run: func(j *CompileJob) error { ran = append(ran, 2); return wantErr }},
		{Run: func(j *CompileJob) error { ran = append(ran, 3); return nil }},
	}
	if err := RunSequential(jobList); err != wantErr {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
	if len(ran) != 2 {
		t.Fatalf("expected sequential run to stop after job 2, ran %v", ran)
	}
}

package framework

import (
	"fmt"
	"time"

	"github.com/hodei/pipelines/pkg/types"
)

// Assertions provides test assertion helpers built on a TestingT, the same
// narrow interface *testing.T satisfies.
type Assertions struct {
	t TestingT
}

// NewAssertions creates a new Assertions instance.
func NewAssertions(t TestingT) *Assertions {
	return &Assertions{t: t}
}

// JobPhase asserts a job is in the expected phase.
func (a *Assertions) JobPhase(job *types.Job, expected types.JobPhase) {
	a.t.Helper()
	if job == nil {
		a.t.Fatalf("job is nil, expected phase %s", expected)
		return
	}
	if job.Phase != expected {
		a.t.Fatalf("job %s is in phase %s, expected %s", job.ID, job.Phase, expected)
	}
}

// JobFailedWithReason asserts a job failed with the given error reason.
func (a *Assertions) JobFailedWithReason(job *types.Job, reason types.Reason) {
	a.t.Helper()
	a.JobPhase(job, types.JobFailed)
	if job.Error == nil || job.Error.Reason != reason {
		a.t.Fatalf("job %s failed with reason %v, expected %s", job.ID, job.Error, reason)
	}
}

// EventSequence asserts that events contains, in order, a subsequence
// whose Type fields equal wantTypes. Other events may appear interleaved.
func (a *Assertions) EventSequence(events []*types.ExecutionEvent, wantTypes ...types.EventType) {
	a.t.Helper()
	i := 0
	for _, e := range events {
		if i >= len(wantTypes) {
			break
		}
		if e.Type == wantTypes[i] {
			i++
		}
	}
	if i != len(wantTypes) {
		a.t.Fatalf("event sequence missing %v after position %d; got types %v", wantTypes[i:], i, eventTypes(events))
	}
}

func eventTypes(events []*types.ExecutionEvent) []types.EventType {
	out := make([]types.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// Eventually polls condition until it returns true or timeout elapses.
func (a *Assertions) Eventually(condition func() bool, timeout, interval time.Duration, msg string) {
	a.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			a.t.Fatalf("condition not met within %v: %s", timeout, msg)
			return
		}
		time.Sleep(interval)
	}
}

// NoError fails the test if err is non-nil.
func (a *Assertions) NoError(err error, msg string) {
	a.t.Helper()
	if err != nil {
		a.t.Fatalf("%s: unexpected error: %v", msg, err)
	}
}

// Error fails the test if err is nil.
func (a *Assertions) Error(err error, msg string) {
	a.t.Helper()
	if err == nil {
		a.t.Fatalf("%s: expected an error, got nil", msg)
	}
}

// Equal fails the test if expected != actual (via fmt.Sprintf comparison).
func (a *Assertions) Equal(expected, actual interface{}, msg string) {
	a.t.Helper()
	if fmt.Sprintf("%v", expected) != fmt.Sprintf("%v", actual) {
		a.t.Fatalf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// True fails the test if condition is false.
func (a *Assertions) True(condition bool, msg string) {
	a.t.Helper()
	if !condition {
		a.t.Fatalf("expected true: %s", msg)
	}
}

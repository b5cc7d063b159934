package tempjobs

import (
	"sync"

	"github.com/golang/glog"
	"github.com/onsi/ginkgo/v2"
	"github.com/rh-ecosystem-edge/tempjobs/internal/params"
)

// Rule gives every spec of the enclosing ginkgo container its own TemporaryJobs guard.
//
// NewRule must be called while the spec tree is built, either at package level or inside a
// container node. It registers a BeforeEach that starts a fresh guard for the spec and a
// DeferCleanup that tears the guard down after the spec, including when the spec failed.
// BeforeEach nodes declared after NewRule therefore see a RUNNING guard.
//
// A deploy issued while the tree is built is rejected, and every spec of the container then fails
// with that rejection even when the caller dropped the returned error.
type Rule struct {
	mu         sync.Mutex
	newJobs    func() *TemporaryJobs
	current    *TemporaryJobs
	rejected   error
	fail       func(message string, callerSkip ...int)
	specFailed func() bool
}

// NewRule creates a Rule and registers its hooks with ginkgo.
func NewRule(gateway Gateway, opts ...Option) *Rule {
	rule := newRule(gateway, opts...)

	ginkgo.BeforeEach(rule.before)

	return rule
}

func newRule(gateway Gateway, opts ...Option) *Rule {
	rule := &Rule{
		newJobs: func() *TemporaryJobs {
			return New(gateway, opts...)
		},
		fail: ginkgo.Fail,
		specFailed: func() bool {
			return ginkgo.CurrentSpecReport().Failed()
		},
	}
	rule.current = rule.newJobs()

	return rule
}

// Job returns a builder bound to the guard of the current spec.
func (r *Rule) Job() *JobBuilder {
	return r.Current().Job()
}

// Jobs returns the jobs deployed during the current spec.
func (r *Rule) Jobs() []*TemporaryJob {
	return r.Current().Jobs()
}

// Current returns the guard of the current spec. Outside of a spec it is a NOT_STARTED guard.
func (r *Rule) Current() *TemporaryJobs {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.current
}

func (r *Rule) before() {
	r.mu.Lock()
	if r.rejected == nil {
		r.rejected = r.current.Rejected()
	}

	if r.current.Phase() != PhaseNotStarted {
		r.current = r.newJobs()
	}
	jobs := r.current
	rejected := r.rejected
	r.mu.Unlock()

	if rejected != nil {
		r.fail(rejected.Error())

		return
	}

	if err := jobs.Start(); err != nil {
		r.fail(err.Error())

		return
	}

	ginkgo.DeferCleanup(r.after, jobs)
}

func (r *Rule) after(jobs *TemporaryJobs) error {
	failed := r.specFailed()
	glog.V(params.Log50Level).Infof("Spec finished (failed: %v), removing temporary jobs", failed)

	return jobs.Finish(failed)
}

// TestingT is the part of testing.TB used by ForTest. GinkgoT() satisfies it as well.
type TestingT interface {
	Helper()
	Cleanup(func())
	Failed() bool
	Errorf(format string, args ...any)
}

// ForTest returns a running guard whose jobs are removed when t finishes.
func ForTest(t TestingT, gateway Gateway, opts ...Option) *TemporaryJobs {
	t.Helper()

	jobs := New(gateway, opts...)
	if err := jobs.Start(); err != nil {
		t.Errorf("failed to start temporary jobs: %v", err)
	}

	t.Cleanup(func() {
		if err := jobs.Finish(t.Failed()); err != nil {
			t.Errorf("%v", err)
		}
	})

	return jobs
}

package tempjobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// memoryGateway runs every job immediately and records removals.
type memoryGateway struct {
	mu         sync.Mutex
	jobs       map[JobID]*JobSpec
	removals   map[JobID]int
	removeErrs map[JobID]error
}

func newMemoryGateway() *memoryGateway {
	return &memoryGateway{
		jobs:       map[JobID]*JobSpec{},
		removals:   map[JobID]int{},
		removeErrs: map[JobID]error{},
	}
}

func (g *memoryGateway) Submit(_ context.Context, spec *JobSpec) (JobID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.jobs[JobID(spec.Name)] = spec.DeepCopy()

	return JobID(spec.Name), nil
}

func (g *memoryGateway) Status(_ context.Context, id JobID) (*JobStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	spec, ok := g.jobs[id]
	if !ok {
		return &JobStatus{State: JobUnknown}, nil
	}

	return &JobStatus{State: JobRunning, Host: spec.Host}, nil
}

func (g *memoryGateway) Remove(_ context.Context, id JobID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.removals[id]++
	if err := g.removeErrs[id]; err != nil {
		return err
	}

	delete(g.jobs, id)

	return nil
}

func (g *memoryGateway) List(_ context.Context) (map[JobID]*JobSpec, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	jobs := make(map[JobID]*JobSpec, len(g.jobs))
	for id, spec := range g.jobs {
		jobs[id] = spec.DeepCopy()
	}

	return jobs, nil
}

func (g *memoryGateway) failRemoval(id JobID, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeErrs[id] = err
}

func (g *memoryGateway) removalsOf(id JobID) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.removals[id]
}

func (g *memoryGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.jobs)
}

var _ = Describe("Rule with a deploy made while the tree is built", func() {
	gateway := newMemoryGateway()
	rule := newRule(gateway, WithDefaultHost("node-1"), WithPollInterval(5*time.Millisecond))

	var failures []string
	rule.fail = func(message string, _ ...int) {
		failures = append(failures, message)
	}

	// The error is dropped, like a deploy issued from a field initializer.
	_, _ = rule.Job().Image("base").Deploy()

	BeforeEach(func() {
		failures = nil
	})

	It("fails every spec with the usage message", func() {
		rule.before()
		Expect(failures).To(ConsistOf(ContainSubstring("Deploy() must be called in a BeforeEach or in the test method")))

		rule.before()
		Expect(failures).To(HaveLen(2))

		Expect(rule.Current().Phase()).To(Equal(PhaseNotStarted))
		Expect(gateway.count()).To(BeZero())
	})

	It("records only deploys refused before Start", func() {
		jobs := New(gateway, WithDefaultHost("node-1"))
		Expect(jobs.Start()).To(Succeed())
		Expect(jobs.Finish(false)).To(Succeed())

		_, err := jobs.Job().Image("base").Deploy()
		Expect(err).To(HaveOccurred())
		Expect(jobs.Rejected()).To(BeNil())

		var orderErr *LifecycleOrderError
		Expect(errors.As(rule.Current().Rejected(), &orderErr)).To(BeTrue())
		Expect(orderErr.Phase).To(Equal(PhaseNotStarted))
	})
})

var _ = Describe("Rule teardown after a failed spec", Ordered, func() {
	gateway := newMemoryGateway()
	rule := NewRule(gateway, WithDefaultHost("node-1"), WithPollInterval(5*time.Millisecond))
	rule.specFailed = func() bool { return true }

	var (
		kept    JobID
		removed JobID
		guard   *TemporaryJobs
	)

	It("lets the spec failure win over teardown failures", func() {
		guard = rule.Current()

		first, err := rule.Job().Image("base").Deploy()
		Expect(err).ToNot(HaveOccurred())
		second, err := rule.Job().Image("base").Deploy()
		Expect(err).ToNot(HaveOccurred())

		kept, removed = first.ID(), second.ID()
		gateway.failRemoval(kept, fmt.Errorf("api unavailable"))
	})

	It("attempted every removal of the failed spec", func() {
		Expect(guard.Phase()).To(Equal(PhaseDone))
		Expect(gateway.removalsOf(kept)).To(Equal(1))
		Expect(gateway.removalsOf(removed)).To(Equal(1))

		jobs, err := gateway.List(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(jobs).To(HaveLen(1))
		Expect(jobs).To(HaveKey(kept))
		Expect(rule.Current()).ToNot(BeIdenticalTo(guard))
	})
})

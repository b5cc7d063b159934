package fakecluster

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"
	"github.com/rh-ecosystem-edge/tempjobs/internal/params"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/tempjobs"
)

// FirstExternalPort is the first port handed out by the default port allocator.
const FirstExternalPort = 30000

// PortAllocator returns the external port for a container port of a job.
type PortAllocator func(job, port string, containerPort int) int

// Cluster is an in-memory tempjobs.Gateway. Jobs run as soon as they are submitted unless a state
// script says otherwise.
type Cluster struct {
	mu         sync.Mutex
	jobs       map[tempjobs.JobID]*entry
	allocate   PortAllocator
	nextPort   int
	submitErr  error
	removeErrs map[tempjobs.JobID]error
	scripts    map[string][]tempjobs.JobState
	removals   map[tempjobs.JobID]int
}

type entry struct {
	spec   *tempjobs.JobSpec
	ports  map[string]tempjobs.PortMapping
	states []tempjobs.JobState
}

// New creates an empty cluster.
func New() *Cluster {
	return &Cluster{
		jobs:       make(map[tempjobs.JobID]*entry),
		nextPort:   FirstExternalPort,
		removeErrs: make(map[tempjobs.JobID]error),
		scripts:    make(map[string][]tempjobs.JobState),
		removals:   make(map[tempjobs.JobID]int),
	}
}

// WithPortAllocator replaces the sequential external port allocator.
func (c *Cluster) WithPortAllocator(allocate PortAllocator) *Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.allocate = allocate

	return c
}

// RejectSubmissions makes every following Submit fail with err. A nil err accepts submissions again.
func (c *Cluster) RejectSubmissions(err error) *Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.submitErr = err

	return c
}

// FailRemoval makes removals of id fail with err.
func (c *Cluster) FailRemoval(id tempjobs.JobID, err error) *Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeErrs[id] = err

	return c
}

// ScriptStates makes jobs with the given image report states in order, one per Status call. The
// last state is repeated once the script is exhausted.
func (c *Cluster) ScriptStates(image string, states ...tempjobs.JobState) *Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.scripts[image] = states

	return c
}

// Submit implements tempjobs.Gateway.
func (c *Cluster) Submit(_ context.Context, spec *tempjobs.JobSpec) (tempjobs.JobID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitErr != nil {
		return "", c.submitErr
	}

	if spec == nil || spec.Name == "" {
		return "", fmt.Errorf("job name cannot be empty")
	}

	if !spec.Image.Resolved() {
		return "", fmt.Errorf("job %s has no resolved image", spec.Name)
	}

	id := tempjobs.JobID(spec.Name)
	if _, exists := c.jobs[id]; exists {
		return "", fmt.Errorf("job %s already exists", id)
	}

	job := &entry{
		spec:   spec.DeepCopy(),
		ports:  make(map[string]tempjobs.PortMapping, len(spec.Ports)),
		states: append([]tempjobs.JobState(nil), c.scripts[spec.Image.Name]...),
	}

	for _, name := range spec.PortNames() {
		port := spec.Ports[name]
		job.ports[name] = tempjobs.PortMapping{
			Internal: port.ContainerPort,
			External: c.externalPortLocked(spec.Name, name, port.ContainerPort),
		}
	}

	c.jobs[id] = job
	glog.V(params.Log100Level).Infof("Fake cluster accepted job %s on host %s", id, spec.Host)

	return id, nil
}

// Status implements tempjobs.Gateway.
func (c *Cluster) Status(_ context.Context, id tempjobs.JobID) (*tempjobs.JobStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[id]
	if !ok {
		return &tempjobs.JobStatus{State: tempjobs.JobUnknown}, nil
	}

	state := tempjobs.JobRunning

	if len(job.states) > 0 {
		state = job.states[0]
		if len(job.states) > 1 {
			job.states = job.states[1:]
		}
	}

	status := &tempjobs.JobStatus{
		State: state,
		Host:  job.spec.Host,
		Ports: make(map[string]tempjobs.PortMapping, len(job.ports)),
	}

	for name, mapping := range job.ports {
		status.Ports[name] = mapping
	}

	if state == tempjobs.JobFailed {
		status.Message = "scripted failure"
	}

	return status, nil
}

// Remove implements tempjobs.Gateway.
func (c *Cluster) Remove(_ context.Context, id tempjobs.JobID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removals[id]++

	if err := c.removeErrs[id]; err != nil {
		return err
	}

	delete(c.jobs, id)

	return nil
}

// List implements tempjobs.Gateway.
func (c *Cluster) List(_ context.Context) (map[tempjobs.JobID]*tempjobs.JobSpec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	jobs := make(map[tempjobs.JobID]*tempjobs.JobSpec, len(c.jobs))
	for id, job := range c.jobs {
		jobs[id] = job.spec.DeepCopy()
	}

	return jobs, nil
}

// Removals returns how often Remove was called for id.
func (c *Cluster) Removals(id tempjobs.JobID) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.removals[id]
}

// Put stores spec as if it had been submitted earlier, keeping its Created timestamp.
func (c *Cluster) Put(spec *tempjobs.JobSpec) tempjobs.JobID {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := tempjobs.JobID(spec.Name)
	c.jobs[id] = &entry{spec: spec.DeepCopy(), ports: map[string]tempjobs.PortMapping{}}

	return id
}

func (c *Cluster) externalPortLocked(job, name string, containerPort int) int {
	if c.allocate != nil {
		return c.allocate(job, name, containerPort)
	}

	port := c.nextPort
	c.nextPort++

	return port
}

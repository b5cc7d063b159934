package tempjobs

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/golang/glog"
	"github.com/rh-ecosystem-edge/tempjobs/internal/params"
)

// TemporaryJob is a deployed job tracked by the TemporaryJobs guard that created it.
type TemporaryJob struct {
	mu      sync.Mutex
	id      JobID
	spec    *JobSpec
	gateway Gateway
	status  HandleStatus
	host    string
	ports   map[string]PortMapping
	ready   map[string]bool
}

func newTemporaryJob(id JobID, spec *JobSpec, gateway Gateway) *TemporaryJob {
	return &TemporaryJob{
		id:      id,
		spec:    spec,
		gateway: gateway,
		status:  StatusPending,
		host:    spec.Host,
		ports:   make(map[string]PortMapping),
		ready:   make(map[string]bool),
	}
}

// ID returns the identifier assigned by the gateway.
func (j *TemporaryJob) ID() JobID {
	return j.id
}

// Spec returns a copy of the spec the job was deployed from.
func (j *TemporaryJob) Spec() *JobSpec {
	return j.spec.DeepCopy()
}

// Status returns the current handle status.
func (j *TemporaryJob) Status() HandleStatus {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.status
}

// Host returns the host the job runs on.
func (j *TemporaryJob) Host() string {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.host
}

// Addresses returns the externally reachable host:port addresses of the named port.
func (j *TemporaryJob) Addresses(port string) ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	mapping, err := j.readyPortLocked(port)
	if err != nil {
		return nil, err
	}

	return []string{net.JoinHostPort(j.host, strconv.Itoa(mapping.External))}, nil
}

// Port returns the external port of the named port on host, which is either the host the job was
// requested on or the host the gateway reported it running on.
func (j *TemporaryJob) Port(host, port string) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	mapping, err := j.readyPortLocked(port)
	if err != nil {
		return 0, err
	}

	if host != j.host && host != j.spec.Host {
		return 0, fmt.Errorf("temporary job %s is not deployed on host %s", j.id, host)
	}

	return mapping.External, nil
}

// Undeploy removes the job before the end of the test. Removing a removed job is a no-op.
func (j *TemporaryJob) Undeploy(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.removeLocked(ctx)
}

func (j *TemporaryJob) readyPortLocked(port string) (PortMapping, error) {
	if _, ok := j.spec.Ports[port]; !ok {
		return PortMapping{}, fmt.Errorf("temporary job %s has no port named %s", j.id, port)
	}

	if j.status == StatusRemoved || !j.ready[port] {
		return PortMapping{}, &NotReadyError{Job: j.id, Port: port, Status: j.status}
	}

	return j.ports[port], nil
}

func (j *TemporaryJob) removeLocked(ctx context.Context) error {
	if j.status == StatusRemoved {
		glog.V(params.Log50Level).Infof("Temporary job %s already removed", j.id)

		return nil
	}

	glog.V(params.LogLevel).Infof("Removing temporary job %s", j.id)

	if err := j.gateway.Remove(ctx, j.id); err != nil {
		return fmt.Errorf("failed to remove temporary job %s: %w", j.id, err)
	}

	j.status = StatusRemoved

	return nil
}

func (j *TemporaryJob) running(status *JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if status.Host != "" {
		j.host = status.Host
	}

	for name, mapping := range status.Ports {
		j.ports[name] = mapping
	}
}

func (j *TemporaryJob) markPortReady(port string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.ready[port] = true
}

func (j *TemporaryJob) setStatus(status HandleStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status != StatusRemoved {
		j.status = status
	}
}

func (j *TemporaryJob) externalPort(port string) (int, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	mapping, ok := j.ports[port]

	return mapping.External, ok && mapping.External > 0
}

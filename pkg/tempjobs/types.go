package tempjobs

import (
	"sort"
	"time"
)

// JobID identifies a job submitted through a Gateway.
type JobID string

// String returns the id as a plain string.
func (id JobID) String() string {
	return string(id)
}

// ImageRef is either a literal image reference or a placeholder for an image that still has to be
// built. The placeholder is resolved at deploy time.
type ImageRef struct {
	Name      string `json:"name,omitempty"`
	FromBuild bool   `json:"fromBuild,omitempty"`
}

// LiteralImage returns an ImageRef pointing at an existing image.
func LiteralImage(name string) ImageRef {
	return ImageRef{Name: name}
}

// PendingBuild returns an ImageRef resolved by the guard's ImageBuilder at deploy time.
func PendingBuild() ImageRef {
	return ImageRef{FromBuild: true}
}

// Resolved reports whether the reference carries a usable image name.
func (r ImageRef) Resolved() bool {
	return !r.FromBuild && r.Name != ""
}

func (r ImageRef) String() string {
	if r.FromBuild {
		return "<pending build>"
	}

	return r.Name
}

// PortSpec describes one named container port of a job.
type PortSpec struct {
	ContainerPort int  `json:"containerPort"`
	Wait          bool `json:"wait"`
}

// Registration is a service-discovery entry published for a named port.
type Registration struct {
	Domain   string `json:"domain"`
	Protocol string `json:"protocol"`
	Service  string `json:"service"`
}

// JobSpec is the immutable description of a temporary job handed to the Gateway.
type JobSpec struct {
	Name          string              `json:"name"`
	Image         ImageRef            `json:"image"`
	Host          string              `json:"host"`
	Ports         map[string]PortSpec `json:"ports,omitempty"`
	Registrations []Registration      `json:"registrations,omitempty"`
	Env           map[string]string   `json:"env,omitempty"`
	Command       []string            `json:"command,omitempty"`
	Created       time.Time           `json:"created"`
}

// DeepCopy returns a copy sharing no maps or slices with the receiver.
func (s *JobSpec) DeepCopy() *JobSpec {
	if s == nil {
		return nil
	}

	out := *s

	if s.Ports != nil {
		out.Ports = make(map[string]PortSpec, len(s.Ports))
		for name, port := range s.Ports {
			out.Ports[name] = port
		}
	}

	if s.Env != nil {
		out.Env = make(map[string]string, len(s.Env))
		for name, value := range s.Env {
			out.Env[name] = value
		}
	}

	if s.Registrations != nil {
		out.Registrations = append([]Registration(nil), s.Registrations...)
	}

	if s.Command != nil {
		out.Command = append([]string(nil), s.Command...)
	}

	return &out
}

// PortNames returns the names of the job's ports in lexical order.
func (s *JobSpec) PortNames() []string {
	names := make([]string, 0, len(s.Ports))
	for name := range s.Ports {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// JobState is the state of a job as reported by the Gateway.
type JobState string

const (
	// JobPending means the job was accepted but is not running yet.
	JobPending JobState = "PENDING"
	// JobRunning means the job is running on its host.
	JobRunning JobState = "RUNNING"
	// JobFailed means the job can not run.
	JobFailed JobState = "FAILED"
	// JobUnknown means the gateway does not know the job.
	JobUnknown JobState = "UNKNOWN"
)

// PortMapping maps a container port to the port reachable from outside the cluster.
type PortMapping struct {
	Internal int `json:"internal"`
	External int `json:"external"`
}

// JobStatus is the gateway view of a submitted job.
type JobStatus struct {
	State   JobState
	Host    string
	Ports   map[string]PortMapping
	Message string
}

// HandleStatus is the status of a TemporaryJob as tracked by its guard.
type HandleStatus string

const (
	// StatusPending means the job was submitted and readiness is not established yet.
	StatusPending HandleStatus = "PENDING"
	// StatusReady means every waited port answered.
	StatusReady HandleStatus = "READY"
	// StatusFailed means the job never became ready.
	StatusFailed HandleStatus = "FAILED"
	// StatusRemoved means the job was removed from the cluster.
	StatusRemoved HandleStatus = "REMOVED"
)

// Phase is the lifecycle phase of a TemporaryJobs guard.
type Phase string

const (
	// PhaseNotStarted is the phase of a freshly constructed guard.
	PhaseNotStarted Phase = "NOT_STARTED"
	// PhaseRunning is entered by the before hook. Deploys are only legal here.
	PhaseRunning Phase = "RUNNING"
	// PhaseTearingDown is entered by the after hook.
	PhaseTearingDown Phase = "TEARING_DOWN"
	// PhaseDone is entered once every removal was attempted.
	PhaseDone Phase = "DONE"
)

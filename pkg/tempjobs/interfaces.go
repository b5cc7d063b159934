package tempjobs

import "context"

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

// Gateway is the remote job-control service that schedules temporary jobs on the cluster.
type Gateway interface {
	// Submit schedules the job described by spec and returns its identifier.
	Submit(ctx context.Context, spec *JobSpec) (JobID, error)

	// Status reports the current state of a job. Unknown jobs are reported as JobUnknown.
	Status(ctx context.Context, id JobID) (*JobStatus, error)

	// Remove undeploys a job. Removing an unknown or already removed job succeeds.
	Remove(ctx context.Context, id JobID) error

	// List returns every job known to the gateway.
	List(ctx context.Context) (map[JobID]*JobSpec, error)
}

// Prober reports whether a network endpoint accepts connections.
// Probe must be free of side effects and safe to call repeatedly.
type Prober interface {
	Probe(host string, port int) bool
}

// ImageBuilder builds the image used by jobs configured with ImageFromBuild.
type ImageBuilder interface {
	BuildImage(ctx context.Context) (string, error)
}

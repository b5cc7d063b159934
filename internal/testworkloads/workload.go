package testworkloads

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/rh-ecosystem-edge/tempjobs/internal/params"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/tempjobs"
)

// Workload defines a canned job used by the live suites.
type Workload interface {
	// Name is the stem of the job name.
	Name() string

	// Configure fills the builder with the workload image, ports and environment.
	Configure(builder *tempjobs.JobBuilder) *tempjobs.JobBuilder
}

// JobSource hands out job builders. Both *tempjobs.TemporaryJobs and *tempjobs.Rule are sources.
type JobSource interface {
	Job() *tempjobs.JobBuilder
}

// Deploy configures and deploys workload through source.
func Deploy(source JobSource, workload Workload) (*tempjobs.TemporaryJob, error) {
	if workload == nil {
		return nil, fmt.Errorf("workload cannot be nil")
	}

	glog.V(params.Log100Level).Infof("Deploying workload %s", workload.Name())

	job, err := workload.Configure(source.Job().Name(workload.Name())).Deploy()
	if err != nil {
		return job, fmt.Errorf("failed to deploy workload %s: %w", workload.Name(), err)
	}

	return job, nil
}

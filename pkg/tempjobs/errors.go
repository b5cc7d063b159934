package tempjobs

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// ConfigurationError reports invalid or missing builder input.
type ConfigurationError struct {
	Job    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Job == "" {
		return fmt.Sprintf("invalid temporary job configuration: %s", e.Reason)
	}

	return fmt.Sprintf("invalid configuration for temporary job %s: %s", e.Job, e.Reason)
}

// LifecycleOrderError reports a deploy outside of the RUNNING phase of its guard.
type LifecycleOrderError struct {
	Phase Phase
}

func (e *LifecycleOrderError) Error() string {
	return fmt.Sprintf("Deploy() must be called in a BeforeEach or in the test method "+
		"(temporary jobs are in phase %s)", e.Phase)
}

// BuildError reports a failed image build for a job deployed with ImageFromBuild.
type BuildError struct {
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build image: %v", e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// SubmissionError reports that the gateway rejected a job.
type SubmissionError struct {
	Job string
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to submit temporary job %s: %v", e.Job, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// JobFailedError reports a job that the gateway marked as failed while waiting for it to run.
type JobFailedError struct {
	Job     JobID
	Message string
}

func (e *JobFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("temporary job %s failed", e.Job)
	}

	return fmt.Sprintf("temporary job %s failed: %s", e.Job, e.Message)
}

// ProbeTimeoutError reports a job or port that did not become ready in time. Port is empty when the
// job itself never reached the RUNNING state.
type ProbeTimeoutError struct {
	Job  JobID
	Port string
	Host string
	Err  error
}

func (e *ProbeTimeoutError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("timed out waiting for temporary job %s to run: %v", e.Job, e.Err)
	}

	return fmt.Sprintf("timed out waiting for port %s of temporary job %s on host %s: %v",
		e.Port, e.Job, e.Host, e.Err)
}

func (e *ProbeTimeoutError) Unwrap() error {
	return e.Err
}

// NotReadyError reports access to a port that has not finished its readiness wait.
type NotReadyError struct {
	Job    JobID
	Port   string
	Status HandleStatus
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("port %s of temporary job %s is not ready (job is %s)", e.Port, e.Job, e.Status)
}

// TeardownError aggregates the removals that failed while tearing temporary jobs down.
type TeardownError struct {
	Failed []JobID
	Err    error
}

func (e *TeardownError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for _, id := range e.Failed {
		ids = append(ids, id.String())
	}

	return fmt.Sprintf("failed to remove temporary jobs [%s]: %v", strings.Join(ids, ", "), e.Err)
}

func (e *TeardownError) Unwrap() []error {
	return multierr.Errors(e.Err)
}

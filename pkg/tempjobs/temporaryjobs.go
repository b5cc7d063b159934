package tempjobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/rh-ecosystem-edge/tempjobs/internal/params"
	"go.uber.org/multierr"
	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	// DefaultDeployTimeout bounds the wait for a submitted job to run.
	DefaultDeployTimeout = 5 * time.Minute
	// DefaultProbeTimeout bounds the readiness wait of a single port.
	DefaultProbeTimeout = 2 * time.Minute
	// DefaultPollInterval is the interval between status polls and probes.
	DefaultPollInterval = time.Second
	// DefaultJobPrefix starts the name of every temporary job.
	DefaultJobPrefix = "tmp"
	// DefaultRemoveTimeout bounds a single removal during teardown.
	DefaultRemoveTimeout = time.Minute
	// DefaultBuildTimeout bounds the image build behind ImageFromBuild.
	DefaultBuildTimeout = 10 * time.Minute
)

// Option configures a TemporaryJobs guard.
type Option func(*TemporaryJobs)

// WithProber sets the prober used for port readiness.
func WithProber(prober Prober) Option {
	return func(t *TemporaryJobs) {
		if prober != nil {
			t.prober = prober
		}
	}
}

// WithImageBuilder sets the builder that resolves ImageFromBuild.
func WithImageBuilder(builder ImageBuilder) Option {
	return func(t *TemporaryJobs) {
		t.imageBuilder = builder
	}
}

// WithDefaultHost sets the host used by jobs that configure none.
func WithDefaultHost(host string) Option {
	return func(t *TemporaryJobs) {
		t.defaultHost = host
	}
}

// WithDeployTimeout sets how long Deploy waits for a job to run.
func WithDeployTimeout(timeout time.Duration) Option {
	return func(t *TemporaryJobs) {
		if timeout > 0 {
			t.deployTimeout = timeout
		}
	}
}

// WithBuildTimeout sets how long the image build may take. The build is not part of the deploy timeout.
func WithBuildTimeout(timeout time.Duration) Option {
	return func(t *TemporaryJobs) {
		if timeout > 0 {
			t.buildTimeout = timeout
		}
	}
}

// WithProbeTimeout sets how long Deploy waits for each waited port.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(t *TemporaryJobs) {
		if timeout > 0 {
			t.probeTimeout = timeout
		}
	}
}

// WithPollInterval sets the interval between polls.
func WithPollInterval(interval time.Duration) Option {
	return func(t *TemporaryJobs) {
		if interval > 0 {
			t.pollInterval = interval
		}
	}
}

// WithJobPrefix sets the prefix of generated job names.
func WithJobPrefix(prefix string) Option {
	return func(t *TemporaryJobs) {
		if prefix != "" {
			t.prefix = prefix
		}
	}
}

// TemporaryJobs binds temporary jobs to the run of one test. Jobs can only be deployed between
// Start and Finish, and Finish removes every job deployed in between whatever the test outcome.
type TemporaryJobs struct {
	mu            sync.Mutex
	buildMu       sync.Mutex
	phase         Phase
	rejected      error
	jobs          []*TemporaryJob
	gateway       Gateway
	prober        Prober
	imageBuilder  ImageBuilder
	builtImage    string
	defaultHost   string
	prefix        string
	deployTimeout time.Duration
	buildTimeout  time.Duration
	probeTimeout  time.Duration
	pollInterval  time.Duration
}

// New creates a guard in the NOT_STARTED phase.
func New(gateway Gateway, opts ...Option) *TemporaryJobs {
	jobs := &TemporaryJobs{
		phase:         PhaseNotStarted,
		gateway:       gateway,
		prober:        DefaultProber{},
		prefix:        DefaultJobPrefix,
		deployTimeout: DefaultDeployTimeout,
		buildTimeout:  DefaultBuildTimeout,
		probeTimeout:  DefaultProbeTimeout,
		pollInterval:  DefaultPollInterval,
	}

	for _, opt := range opts {
		opt(jobs)
	}

	return jobs
}

// Phase returns the current lifecycle phase.
func (t *TemporaryJobs) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.phase
}

// Jobs returns the jobs deployed through the guard in creation order.
func (t *TemporaryJobs) Jobs() []*TemporaryJob {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]*TemporaryJob(nil), t.jobs...)
}

// Prefix returns the prefix of the job names generated by the guard.
func (t *TemporaryJobs) Prefix() string {
	return t.prefix
}

// Job returns a builder for a new temporary job.
func (t *TemporaryJobs) Job() *JobBuilder {
	return newJobBuilder(t)
}

// Start enters the RUNNING phase. It is called by the before hook.
func (t *TemporaryJobs) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != PhaseNotStarted {
		return fmt.Errorf("temporary jobs can not start from phase %s", t.phase)
	}

	glog.V(params.Log50Level).Infof("Temporary jobs %s entering %s", t.prefix, PhaseRunning)
	t.phase = PhaseRunning

	return nil
}

// Finish removes every deployed job and enters the DONE phase. Every removal is attempted even if
// some fail. When testFailed is true a teardown failure is logged instead of returned, so that the
// failure of the test itself is the one reported.
func (t *TemporaryJobs) Finish(testFailed bool) error {
	t.mu.Lock()

	switch t.phase {
	case PhaseDone, PhaseTearingDown:
		t.mu.Unlock()

		return nil
	case PhaseNotStarted:
		t.phase = PhaseDone
		t.mu.Unlock()

		return nil
	}

	t.phase = PhaseTearingDown
	jobs := append([]*TemporaryJob(nil), t.jobs...)
	t.mu.Unlock()

	glog.V(params.LogLevel).Infof("Tearing down %d temporary jobs", len(jobs))

	var (
		errs   error
		failed []JobID
	)

	for _, job := range jobs {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultRemoveTimeout)
		err := job.Undeploy(ctx)
		cancel()

		if err != nil {
			failed = append(failed, job.ID())
			errs = multierr.Append(errs, err)
		}
	}

	t.mu.Lock()
	t.phase = PhaseDone
	t.mu.Unlock()

	if errs == nil {
		return nil
	}

	teardownErr := &TeardownError{Failed: failed, Err: errs}

	if testFailed {
		glog.Errorf("Test failed, additionally: %v", teardownErr)

		return nil
	}

	return teardownErr
}

// Rejected returns the first deploy refused while the guard was NOT_STARTED, or nil.
func (t *TemporaryJobs) Rejected() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.rejected
}

func (t *TemporaryJobs) deploy(builder *JobBuilder, host string) (*TemporaryJob, error) {
	if err := t.checkRunning(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(host) == "" {
		host = t.defaultHost
	}

	spec, err := builder.spec(t.jobName(builder.name), host)
	if err != nil {
		return nil, err
	}

	if spec.Image.FromBuild {
		image, err := t.resolveImage()
		if err != nil {
			return nil, err
		}

		spec.Image = LiteralImage(image)
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.deployTimeout+t.probeTimeout*time.Duration(len(spec.Ports)))
	defer cancel()

	spec.Created = time.Now().UTC()

	glog.V(params.LogLevel).Infof("Deploying temporary job %s (image %s) to host %s", spec.Name, spec.Image, spec.Host)

	id, err := t.gateway.Submit(ctx, spec)
	if err != nil {
		return nil, &SubmissionError{Job: spec.Name, Err: err}
	}

	job := newTemporaryJob(id, spec, t.gateway)

	if err := t.register(job); err != nil {
		// The guard left RUNNING while we were submitting; do not leak the job.
		if removeErr := t.gateway.Remove(ctx, id); removeErr != nil {
			glog.Errorf("Failed to remove temporary job %s submitted after teardown: %v", id, removeErr)
		}

		return nil, err
	}

	if err := t.awaitReady(ctx, job); err != nil {
		job.setStatus(StatusFailed)

		return job, err
	}

	job.setStatus(StatusReady)
	glog.V(params.LogLevel).Infof("Temporary job %s is ready on %s", id, job.Host())

	return job, nil
}

func (t *TemporaryJobs) checkRunning() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase == PhaseRunning {
		return nil
	}

	err := &LifecycleOrderError{Phase: t.phase}
	if t.phase == PhaseNotStarted && t.rejected == nil {
		t.rejected = err
	}

	return err
}

func (t *TemporaryJobs) register(job *TemporaryJob) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != PhaseRunning {
		return &LifecycleOrderError{Phase: t.phase}
	}

	t.jobs = append(t.jobs, job)

	return nil
}

// resolveImage builds the image once per guard. Concurrent deploys wait for the same build, which
// runs outside t.mu so that Phase, Jobs and Finish stay responsive.
func (t *TemporaryJobs) resolveImage() (string, error) {
	t.buildMu.Lock()
	defer t.buildMu.Unlock()

	t.mu.Lock()
	image := t.builtImage
	t.mu.Unlock()

	if image != "" {
		return image, nil
	}

	if t.imageBuilder == nil {
		return "", &ConfigurationError{Reason: "ImageFromBuild() requires an image builder"}
	}

	glog.V(params.LogLevel).Infof("Building image for temporary jobs %s", t.prefix)

	ctx, cancel := context.WithTimeout(context.Background(), t.buildTimeout)
	defer cancel()

	image, err := t.imageBuilder.BuildImage(ctx)
	if err != nil {
		return "", &BuildError{Err: err}
	}

	if strings.TrimSpace(image) == "" {
		return "", &BuildError{Err: fmt.Errorf("image builder returned an empty image reference")}
	}

	t.mu.Lock()
	t.builtImage = image
	t.mu.Unlock()

	return image, nil
}

// awaitReady waits for the job to run and then for each waited port to answer.
func (t *TemporaryJobs) awaitReady(ctx context.Context, job *TemporaryJob) error {
	var lastStatus *JobStatus

	err := wait.PollUntilContextTimeout(
		ctx, t.pollInterval, t.deployTimeout, true, func(ctx context.Context) (bool, error) {
			status, err := t.gateway.Status(ctx, job.ID())
			if err != nil {
				glog.V(params.LogLevel).Infof("Status of temporary job %s unavailable: %v", job.ID(), err)

				return false, nil
			}

			lastStatus = status

			switch status.State {
			case JobRunning:
				return true, nil
			case JobFailed:
				return false, &JobFailedError{Job: job.ID(), Message: status.Message}
			}

			glog.V(params.Log100Level).Infof("Temporary job %s is %s", job.ID(), status.State)

			return false, nil
		})
	if err != nil {
		var failed *JobFailedError
		if errors.As(err, &failed) {
			return failed
		}

		return &ProbeTimeoutError{Job: job.ID(), Host: job.Host(), Err: err}
	}

	job.running(lastStatus)

	for _, name := range job.spec.PortNames() {
		port := job.spec.Ports[name]
		if !port.Wait {
			glog.V(params.Log50Level).Infof("Not waiting for port %s of temporary job %s", name, job.ID())
			job.markPortReady(name)

			continue
		}

		if err := t.awaitPort(ctx, job, name); err != nil {
			return err
		}

		job.markPortReady(name)
	}

	return nil
}

func (t *TemporaryJobs) awaitPort(ctx context.Context, job *TemporaryJob, name string) error {
	host := job.Host()

	external, ok := job.externalPort(name)
	if !ok {
		return &ProbeTimeoutError{Job: job.ID(), Port: name, Host: host,
			Err: fmt.Errorf("gateway reported no external port")}
	}

	glog.V(params.LogLevel).Infof("Waiting for port %s (%s:%d) of temporary job %s", name, host, external, job.ID())

	err := wait.PollUntilContextTimeout(
		ctx, t.pollInterval, t.probeTimeout, true, func(ctx context.Context) (bool, error) {
			return t.prober.Probe(host, external), nil
		})
	if err != nil {
		return &ProbeTimeoutError{Job: job.ID(), Port: name, Host: host, Err: err}
	}

	return nil
}

func (t *TemporaryJobs) jobName(stem string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	if stem == "" {
		return fmt.Sprintf("%s-%s", t.prefix, suffix)
	}

	return fmt.Sprintf("%s-%s-%s", t.prefix, stem, suffix)
}

package tempjobs

import (
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/rh-ecosystem-edge/tempjobs/internal/params"
)

// JobBuilder accumulates the configuration of one temporary job. Configuration calls only record
// values and can be issued in any order; nothing touches the cluster before Deploy.
type JobBuilder struct {
	jobs          *TemporaryJobs
	name          string
	image         ImageRef
	host          string
	ports         map[string]PortSpec
	registrations []Registration
	env           map[string]string
	command       []string
	errorMsg      string
}

func newJobBuilder(jobs *TemporaryJobs) *JobBuilder {
	return &JobBuilder{
		jobs:  jobs,
		ports: make(map[string]PortSpec),
		env:   make(map[string]string),
	}
}

// Name sets the stem of the generated job name. The guard prefix and a random suffix are added.
func (b *JobBuilder) Name(name string) *JobBuilder {
	b.name = name

	return b
}

// Image sets a literal image reference.
func (b *JobBuilder) Image(image string) *JobBuilder {
	b.image = LiteralImage(image)

	return b
}

// ImageFromBuild defers the image reference to the guard's ImageBuilder, which runs at deploy time.
func (b *JobBuilder) ImageFromBuild() *JobBuilder {
	b.image = PendingBuild()

	return b
}

// Host sets the host the job is deployed to.
func (b *JobBuilder) Host(host string) *JobBuilder {
	b.host = host

	return b
}

// Port exposes containerPort under name. When wait is true, Deploy blocks until the port answers.
func (b *JobBuilder) Port(name string, containerPort int, wait bool) *JobBuilder {
	if strings.TrimSpace(name) == "" {
		b.recordError("port name cannot be empty")

		return b
	}

	if containerPort < 1 || containerPort > 65535 {
		b.recordError(fmt.Sprintf("port %s: container port %d out of range", name, containerPort))

		return b
	}

	b.ports[name] = PortSpec{ContainerPort: containerPort, Wait: wait}

	return b
}

// Registration publishes the port serviceName under domain and protocol in service discovery.
func (b *JobBuilder) Registration(domain, protocol, serviceName string) *JobBuilder {
	registration := Registration{Domain: domain, Protocol: protocol, Service: serviceName}

	for i, existing := range b.registrations {
		if existing.Domain == domain && existing.Protocol == protocol {
			b.registrations[i] = registration

			return b
		}
	}

	b.registrations = append(b.registrations, registration)

	return b
}

// Env sets an environment variable of the job.
func (b *JobBuilder) Env(name, value string) *JobBuilder {
	if strings.TrimSpace(name) == "" {
		b.recordError("environment variable name cannot be empty")

		return b
	}

	b.env[name] = value

	return b
}

// Command overrides the image entrypoint arguments.
func (b *JobBuilder) Command(args ...string) *JobBuilder {
	b.command = append([]string(nil), args...)

	return b
}

// Deploy deploys the job to the configured host, or the guard's default host when none was set.
func (b *JobBuilder) Deploy() (*TemporaryJob, error) {
	return b.jobs.deploy(b, b.host)
}

// DeployTo deploys the job to host, overriding any configured host.
func (b *JobBuilder) DeployTo(host string) (*TemporaryJob, error) {
	return b.jobs.deploy(b, host)
}

func (b *JobBuilder) recordError(msg string) {
	glog.V(params.Log10Level).Infof("Invalid temporary job configuration: %s", msg)

	if b.errorMsg == "" {
		b.errorMsg = msg
	}
}

// spec freezes the builder into a JobSpec. The result shares no state with the builder.
func (b *JobBuilder) spec(name, host string) (*JobSpec, error) {
	if b.errorMsg != "" {
		return nil, &ConfigurationError{Job: name, Reason: b.errorMsg}
	}

	if !b.image.FromBuild && strings.TrimSpace(b.image.Name) == "" {
		return nil, &ConfigurationError{Job: name, Reason: "no image configured"}
	}

	if strings.TrimSpace(host) == "" {
		return nil, &ConfigurationError{Job: name, Reason: "no host configured"}
	}

	for _, registration := range b.registrations {
		if _, ok := b.ports[registration.Service]; !ok {
			return nil, &ConfigurationError{
				Job:    name,
				Reason: fmt.Sprintf("registration %s/%s refers to unknown port %s",
					registration.Domain, registration.Protocol, registration.Service),
			}
		}
	}

	spec := &JobSpec{
		Name:          name,
		Image:         b.image,
		Host:          host,
		Ports:         b.ports,
		Registrations: b.registrations,
		Env:           b.env,
		Command:       b.command,
	}

	return spec.DeepCopy(), nil
}

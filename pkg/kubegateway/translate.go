package kubegateway

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rh-ecosystem-edge/tempjobs/pkg/tempjobs"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/yaml"
)

const (
	// ManagedByLabel marks the objects created by the gateway.
	ManagedByLabel = "app.kubernetes.io/managed-by"
	// ManagedByValue is the value of ManagedByLabel.
	ManagedByValue = "tempjobs"
	// JobLabel carries the job name on every object of a job.
	JobLabel = "tempjobs.rh-ecosystem-edge.io/job"
	// SpecAnnotation stores the YAML encoded job spec on the Deployment.
	SpecAnnotation = "tempjobs.rh-ecosystem-edge.io/spec"
	// PortsAnnotation maps Service port names to job port names.
	PortsAnnotation = "tempjobs.rh-ecosystem-edge.io/ports"
	// RegistrationAnnotationPrefix prefixes one annotation per service-discovery registration.
	RegistrationAnnotationPrefix = "tempjobs.rh-ecosystem-edge.io/registration."
	// HostnameLabel pins the job pod to its host.
	HostnameLabel = "kubernetes.io/hostname"

	containerName = "job"
	maxNameLength = 63
)

func newDeployment(name, namespace string, spec *tempjobs.JobSpec) (*appsv1.Deployment, error) {
	encoded, err := yaml.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode spec of job %s: %w", spec.Name, err)
	}

	labels := jobLabels(name)
	annotations := registrationAnnotations(spec)
	annotations[SpecAnnotation] = string(encoded)

	container := corev1.Container{
		Name:            containerName,
		Image:           spec.Image.Name,
		ImagePullPolicy: corev1.PullIfNotPresent,
		Env:             envVars(spec.Env),
		SecurityContext: &corev1.SecurityContext{
			AllowPrivilegeEscalation: ptr.To(false),
		},
	}

	if len(spec.Command) > 0 {
		container.Args = append([]string(nil), spec.Command...)
	}

	for i, portName := range spec.PortNames() {
		container.Ports = append(container.Ports, corev1.ContainerPort{
			Name:          servicePortName(i),
			ContainerPort: int32(spec.Ports[portName].ContainerPort),
			Protocol:      corev1.ProtocolTCP,
		})
	}

	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   namespace,
			Labels:      labels,
			Annotations: annotations,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas:             ptr.To[int32](1),
			RevisionHistoryLimit: ptr.To[int32](0),
			Selector: &metav1.LabelSelector{
				MatchLabels: map[string]string{JobLabel: name},
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: labels,
				},
				Spec: corev1.PodSpec{
					Containers:                    []corev1.Container{container},
					NodeSelector:                  map[string]string{HostnameLabel: spec.Host},
					TerminationGracePeriodSeconds: ptr.To[int64](5),
				},
			},
		},
	}, nil
}

func newService(name, namespace string, spec *tempjobs.JobSpec) (*corev1.Service, error) {
	names := make(map[string]string, len(spec.Ports))
	ports := make([]corev1.ServicePort, 0, len(spec.Ports))

	for i, portName := range spec.PortNames() {
		servicePort := servicePortName(i)
		names[servicePort] = portName
		containerPort := spec.Ports[portName].ContainerPort

		ports = append(ports, corev1.ServicePort{
			Name:       servicePort,
			Port:       int32(containerPort),
			TargetPort: intstr.FromInt(containerPort),
			Protocol:   corev1.ProtocolTCP,
		})
	}

	encodedNames, err := yaml.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("failed to encode port names of job %s: %w", spec.Name, err)
	}

	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   namespace,
			Labels:      jobLabels(name),
			Annotations: map[string]string{PortsAnnotation: string(encodedNames)},
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeNodePort,
			Selector: map[string]string{JobLabel: name},
			Ports:    ports,
		},
	}, nil
}

func decodeSpec(annotations map[string]string) (*tempjobs.JobSpec, error) {
	encoded, ok := annotations[SpecAnnotation]
	if !ok {
		return nil, fmt.Errorf("missing %s annotation", SpecAnnotation)
	}

	spec := &tempjobs.JobSpec{}
	if err := yaml.Unmarshal([]byte(encoded), spec); err != nil {
		return nil, fmt.Errorf("failed to decode job spec: %w", err)
	}

	return spec, nil
}

func portNames(annotations map[string]string) map[string]string {
	names := map[string]string{}

	encoded, ok := annotations[PortsAnnotation]
	if !ok {
		return names
	}

	if err := yaml.Unmarshal([]byte(encoded), &names); err != nil {
		return map[string]string{}
	}

	return names
}

func registrationAnnotations(spec *tempjobs.JobSpec) map[string]string {
	annotations := make(map[string]string, len(spec.Registrations)+1)

	for _, registration := range spec.Registrations {
		key := RegistrationAnnotationPrefix + registration.Service
		value := fmt.Sprintf("%s:%s", registration.Protocol, registration.Domain)

		if existing, ok := annotations[key]; ok {
			value = existing + "," + value
		}

		annotations[key] = value
	}

	return annotations
}

func envVars(env map[string]string) []corev1.EnvVar {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}

	sort.Strings(names)

	vars := make([]corev1.EnvVar, 0, len(names))
	for _, name := range names {
		vars = append(vars, corev1.EnvVar{Name: name, Value: env[name]})
	}

	return vars
}

func jobLabels(name string) map[string]string {
	return map[string]string{
		ManagedByLabel: ManagedByValue,
		JobLabel:       name,
	}
}

func jobSelector(name string) string {
	return fmt.Sprintf("%s=%s", JobLabel, name)
}

// servicePortName returns the i-th port name. Job port names are free form, Kubernetes port names
// are not, so the mapping is kept in PortsAnnotation.
func servicePortName(i int) string {
	return fmt.Sprintf("p%d", i)
}

// resourceName turns a job name into a DNS-1123 label.
func resourceName(jobName string) string {
	lowered := strings.ToLower(strings.TrimSpace(jobName))

	var builder strings.Builder

	for _, r := range lowered {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}

	name := strings.Trim(builder.String(), "-")
	if len(name) <= maxNameLength {
		return name
	}

	// Job names end with their unique suffix, so long names lose the middle of the stem instead.
	cut := strings.LastIndex(name, "-")
	if cut < 0 || len(name)-cut-1 > maxNameLength/2 {
		return strings.Trim(name[:maxNameLength], "-")
	}

	suffix := name[cut+1:]

	head := strings.Trim(name[:maxNameLength-len(suffix)-1], "-")
	if head == "" {
		return suffix
	}

	return head + "-" + suffix
}

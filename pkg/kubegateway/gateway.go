package kubegateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/rh-ecosystem-edge/tempjobs/internal/params"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/tempjobs"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Gateway runs temporary jobs as Kubernetes Deployments exposed through NodePort Services.
type Gateway struct {
	client    kubernetes.Interface
	namespace string
}

// New returns a Gateway managing jobs in namespace.
func New(client kubernetes.Interface, namespace string) *Gateway {
	glog.V(params.Log100Level).Infof("Initializing kubernetes job gateway in namespace: %s", namespace)

	return &Gateway{client: client, namespace: namespace}
}

// Namespace returns the namespace jobs are created in.
func (g *Gateway) Namespace() string {
	return g.namespace
}

// Submit creates the Deployment and Service of the job.
func (g *Gateway) Submit(ctx context.Context, spec *tempjobs.JobSpec) (tempjobs.JobID, error) {
	if spec == nil {
		return "", fmt.Errorf("job spec cannot be nil")
	}

	if !spec.Image.Resolved() {
		return "", fmt.Errorf("job %s has no resolved image", spec.Name)
	}

	name := resourceName(spec.Name)
	if name == "" {
		return "", fmt.Errorf("job name %q yields no valid resource name", spec.Name)
	}

	deployment, err := newDeployment(name, g.namespace, spec)
	if err != nil {
		return "", err
	}

	glog.V(params.LogLevel).Infof("Creating deployment %s/%s for job %s", g.namespace, name, spec.Name)

	_, err = g.client.AppsV1().Deployments(g.namespace).Create(ctx, deployment, metav1.CreateOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to create deployment %s: %w", name, err)
	}

	if len(spec.Ports) > 0 {
		service, err := newService(name, g.namespace, spec)
		if err == nil {
			_, err = g.client.CoreV1().Services(g.namespace).Create(ctx, service, metav1.CreateOptions{})
		}

		if err != nil {
			if removeErr := g.Remove(ctx, tempjobs.JobID(name)); removeErr != nil {
				glog.Errorf("Failed to clean up deployment %s after service error: %v", name, removeErr)
			}

			return "", fmt.Errorf("failed to create service %s: %w", name, err)
		}
	}

	return tempjobs.JobID(name), nil
}

// Status derives the job state from its pods and its Service node ports.
func (g *Gateway) Status(ctx context.Context, id tempjobs.JobID) (*tempjobs.JobStatus, error) {
	deployment, err := g.client.AppsV1().Deployments(g.namespace).Get(ctx, id.String(), metav1.GetOptions{})
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return &tempjobs.JobStatus{State: tempjobs.JobUnknown}, nil
		}

		return nil, fmt.Errorf("failed to get deployment %s: %w", id, err)
	}

	spec, err := decodeSpec(deployment.Annotations)
	if err != nil {
		return nil, err
	}

	status := &tempjobs.JobStatus{State: tempjobs.JobPending, Host: spec.Host}

	pods, err := g.client.CoreV1().Pods(g.namespace).List(ctx, metav1.ListOptions{LabelSelector: jobSelector(id.String())})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods of job %s: %w", id, err)
	}

	for i := range pods.Items {
		pod := &pods.Items[i]

		if pod.Status.Phase == corev1.PodFailed {
			status.State = tempjobs.JobFailed
			status.Message = podMessage(pod)

			return status, nil
		}

		if pod.Status.Phase == corev1.PodRunning && isPodReady(pod) {
			status.State = tempjobs.JobRunning
			if pod.Spec.NodeName != "" {
				status.Host = pod.Spec.NodeName
			}
		} else if msg := podMessage(pod); msg != "" {
			status.Message = msg
		}
	}

	if status.State != tempjobs.JobRunning || len(spec.Ports) == 0 {
		return status, nil
	}

	service, err := g.client.CoreV1().Services(g.namespace).Get(ctx, id.String(), metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get service of job %s: %w", id, err)
	}

	status.Ports = portMappings(service)

	return status, nil
}

// Remove deletes the Deployment and Service of the job. Missing objects are not an error.
func (g *Gateway) Remove(ctx context.Context, id tempjobs.JobID) error {
	policy := metav1.DeletePropagationForeground
	options := metav1.DeleteOptions{PropagationPolicy: &policy}

	glog.V(params.LogLevel).Infof("Deleting deployment and service %s/%s", g.namespace, id)

	err := g.client.AppsV1().Deployments(g.namespace).Delete(ctx, id.String(), options)
	if err != nil && !k8serrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete deployment %s: %w", id, err)
	}

	err = g.client.CoreV1().Services(g.namespace).Delete(ctx, id.String(), metav1.DeleteOptions{})
	if err != nil && !k8serrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete service %s: %w", id, err)
	}

	return nil
}

// List returns every managed job of the namespace.
func (g *Gateway) List(ctx context.Context) (map[tempjobs.JobID]*tempjobs.JobSpec, error) {
	deployments, err := g.client.AppsV1().Deployments(g.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s", ManagedByLabel, ManagedByValue),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}

	jobs := make(map[tempjobs.JobID]*tempjobs.JobSpec, len(deployments.Items))

	for _, deployment := range deployments.Items {
		if deployment.DeletionTimestamp != nil {
			continue
		}

		spec, err := decodeSpec(deployment.Annotations)
		if err != nil {
			glog.V(params.Log10Level).Infof("Skipping deployment %s: %v", deployment.Name, err)

			continue
		}

		jobs[tempjobs.JobID(deployment.Name)] = spec
	}

	return jobs, nil
}

func isPodReady(pod *corev1.Pod) bool {
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}

	return false
}

func podMessage(pod *corev1.Pod) string {
	if pod.Status.Message != "" {
		return pod.Status.Message
	}

	for _, s := range pod.Status.ContainerStatuses {
		if s.State.Waiting != nil && s.State.Waiting.Reason != "" {
			return strings.TrimSpace(s.State.Waiting.Reason + " " + s.State.Waiting.Message)
		}

		if s.State.Terminated != nil && s.State.Terminated.Reason != "" {
			return strings.TrimSpace(s.State.Terminated.Reason + " " + s.State.Terminated.Message)
		}
	}

	return ""
}

func portMappings(service *corev1.Service) map[string]tempjobs.PortMapping {
	mappings := make(map[string]tempjobs.PortMapping, len(service.Spec.Ports))
	names := portNames(service.Annotations)

	for _, port := range service.Spec.Ports {
		name, ok := names[port.Name]
		if !ok {
			name = port.Name
		}

		mappings[name] = tempjobs.PortMapping{
			Internal: port.TargetPort.IntValue(),
			External: int(port.NodePort),
		}
	}

	return mappings
}

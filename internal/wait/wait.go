package wait

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/rh-ecosystem-edge/tempjobs/internal/params"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/clients"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/tempjobs"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
)

// DeploymentDeleted waits until the deployment is gone from the namespace.
func DeploymentDeleted(apiClient *clients.Settings, deploymentName, namespace string, pollInterval,
	timeout time.Duration) error {
	glog.V(params.Log10Level).Infof("Waiting for deployment '%s' in namespace '%s' to be deleted",
		deploymentName, namespace)

	return wait.PollUntilContextTimeout(
		context.TODO(), pollInterval, timeout, true, func(ctx context.Context) (bool, error) {
			_, err := apiClient.K8sClient.AppsV1().Deployments(namespace).Get(ctx, deploymentName, metav1.GetOptions{})
			if k8serrors.IsNotFound(err) {
				glog.V(params.LogLevel).Infof("Deployment '%s' in namespace '%s' is deleted", deploymentName, namespace)

				return true, nil
			}

			if err != nil {
				return false, fmt.Errorf("error getting deployment '%s' in namespace '%s': %w",
					deploymentName, namespace, err)
			}

			return false, nil
		})
}

// NoJobsWithPrefix waits until the gateway lists no job whose name starts with prefix.
func NoJobsWithPrefix(gateway tempjobs.Gateway, prefix string, pollInterval, timeout time.Duration) error {
	return wait.PollUntilContextTimeout(
		context.TODO(), pollInterval, timeout, true, func(ctx context.Context) (bool, error) {
			jobs, err := gateway.List(ctx)
			if err != nil {
				glog.V(params.LogLevel).Infof("Listing jobs error: %v", err)

				return false, err
			}

			remaining := 0

			for _, spec := range jobs {
				if strings.HasPrefix(spec.Name, prefix) {
					remaining++
				}
			}

			glog.V(params.LogLevel).Infof("%d jobs with prefix '%s' remaining", remaining, prefix)

			return remaining == 0, nil
		})
}

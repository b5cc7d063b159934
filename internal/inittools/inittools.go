package inittools

import (
	"context"
	"flag"
	"fmt"

	"github.com/golang/glog"
	ginkgo "github.com/onsi/ginkgo/v2"
	"github.com/rh-ecosystem-edge/tempjobs/internal/config"
	"github.com/rh-ecosystem-edge/tempjobs/internal/params"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/clients"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/kubegateway"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

var (
	// APIClient provides access to cluster. It is nil when no cluster is configured.
	APIClient *clients.Settings
	// GeneralConfig provides access to general configuration parameters.
	GeneralConfig *config.GeneralConfig
)

// init loads all variables automatically when this package is imported. Once package is imported a user has full
// access to all vars within init function. It is recommended to import this package using dot import.
func init() {
	// Work around bug in glog lib
	logf.SetLogger(zap.New(zap.WriteTo(ginkgo.GinkgoWriter), zap.UseDevMode(true)))

	if GeneralConfig = config.NewConfig(); GeneralConfig == nil {
		glog.Fatalf("error to load general config")
	}

	if f := flag.Lookup("logtostderr"); f != nil {
		_ = f.Value.Set("true")
	}

	if f := flag.Lookup("v"); f != nil {
		_ = f.Value.Set(GeneralConfig.VerboseLevel)
	}

	if APIClient = clients.New(GeneralConfig.Kubeconfig); APIClient == nil {
		glog.V(params.Log100Level).Infof("No cluster configured, live suites will be skipped")
	}
}

// ClusterAvailable reports whether a cluster can be reached.
func ClusterAvailable() bool {
	if APIClient == nil || GeneralConfig.DryRun {
		return false
	}

	_, err := APIClient.K8sClient.Discovery().ServerVersion()

	return err == nil
}

// Gateway returns a job gateway for the configured namespace, creating the namespace if needed.
func Gateway(ctx context.Context) (*kubegateway.Gateway, error) {
	if APIClient == nil {
		return nil, fmt.Errorf("can not load ApiClient. Please check your KUBECONFIG env var")
	}

	namespace := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: GeneralConfig.Namespace}}

	_, err := APIClient.K8sClient.CoreV1().Namespaces().Create(ctx, namespace, metav1.CreateOptions{})
	if err != nil && !k8serrors.IsAlreadyExists(err) {
		return nil, fmt.Errorf("failed to create namespace %s: %w", GeneralConfig.Namespace, err)
	}

	return kubegateway.New(APIClient.K8sClient, GeneralConfig.Namespace), nil
}

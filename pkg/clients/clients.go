package clients

import (
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/rh-ecosystem-edge/tempjobs/internal/params"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Settings provides the struct to talk with relevant API.
type Settings struct {
	KubeconfigPath string
	Config         *rest.Config
	K8sClient      kubernetes.Interface
}

// New returns a *Settings with the given kubeconfig.
// An empty kubeconfig falls back to the KUBECONFIG env var and then to the in-cluster config.
func New(kubeconfig string) *Settings {
	if kubeconfig == "" {
		kubeconfig = os.Getenv("KUBECONFIG")
	}

	config, err := restConfig(kubeconfig)
	if err != nil {
		glog.V(params.Log100Level).Infof("Failed to load kubernetes config: %v", err)

		return nil
	}

	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		glog.V(params.Log100Level).Infof("Failed to create kubernetes client: %v", err)

		return nil
	}

	return &Settings{
		KubeconfigPath: kubeconfig,
		Config:         config,
		K8sClient:      client,
	}
}

// NewFromClient wraps an existing clientset, typically a fake one.
func NewFromClient(client kubernetes.Interface) *Settings {
	return &Settings{K8sClient: client}
}

// SetScheme adds the types the reporter dumps to the runtime scheme.
func SetScheme(crScheme *runtime.Scheme) error {
	if err := clientgoscheme.AddToScheme(crScheme); err != nil {
		return fmt.Errorf("failed to add client-go types to scheme: %w", err)
	}

	return nil
}

func restConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig != "" {
		glog.V(params.Log100Level).Infof("Loading kubeconfig from %s", kubeconfig)

		return clientcmd.BuildConfigFromFlags("", kubeconfig)
	}

	return rest.InClusterConfig()
}

// Wrappers to build the K8s clients.

package kube

import (
	"fmt"
	"os"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
)

// BuildRestConfig builds a Kubernetes rest config.
//
// Priority:
// 1. explicit kubeconfig flag
// 2. $KUBECONFIG
// 3. in-cluster config
func BuildRestConfig(kubeconfig string) (*rest.Config, error) {
	var (
		cfg *rest.Config
		err error
	)

	if kubeconfig != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("build config from kubeconfig=%s: %w", kubeconfig, err)
		}
	} else if env := os.Getenv("KUBECONFIG"); env != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", env)
		if err != nil {
			return nil, fmt.Errorf("build config from $KUBECONFIG=%s: %w", env, err)
		}
	} else {
		cfg, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("in-cluster config: %w", err)
		}
	}

	return cfg, nil
}

// BuildKubeClient builds a Kubernetes clientset from an explicit kubeconfig
// path. Credentials are never taken from ambient kubectl state; the resolved
// config is the only source.
func BuildKubeClient(kubeconfig string) (*kubernetes.Clientset, error) {
	cfg, err := BuildRestConfig(kubeconfig)
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("new clientset: %w", err)
	}
	return clientset, nil
}

// BuildMetricsClient builds a metrics-server clientset from the same config
// resolution chain. A missing metrics-server is not an error here; callers
// discover that on first query.
func BuildMetricsClient(kubeconfig string) (*metricsclient.Clientset, error) {
	cfg, err := BuildRestConfig(kubeconfig)
	if err != nil {
		return nil, err
	}

	clientset, err := metricsclient.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("new metrics clientset: %w", err)
	}
	return clientset, nil
}

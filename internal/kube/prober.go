package kube

import (
	"context"

	"github.com/sirupsen/logrus"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Cause classifies why the cluster is not reachable. Callers that only care
// about the boolean can ignore it; tests and logs assert on it.
type Cause string

const (
	// CauseNone means the cluster answered both probe queries.
	CauseNone Cause = ""
	// CauseNotConfigured means no client could be built at startup (no
	// kubeconfig, no in-cluster environment).
	CauseNotConfigured Cause = "not-configured"
	// CauseUnreachable means the API server did not answer the version query.
	CauseUnreachable Cause = "unreachable"
	// CauseQueryFailed means the API server answered the version query but a
	// follow-up resource query failed.
	CauseQueryFailed Cause = "query-failed"
)

// Availability is the result of a reachability probe.
type Availability struct {
	Reachable bool
	Cause     Cause
	Err       error
}

// Prober checks whether the configured cluster can be reached. It runs two
// queries per probe, server version and a single-node list, and reports
// reachable only when both succeed. No caching, no retry.
type Prober struct {
	Client kubernetes.Interface
	Logger logrus.FieldLogger
}

// NewProber returns a prober for the given clientset. A nil clientset is
// allowed and always probes as not configured.
func NewProber(client kubernetes.Interface, logger logrus.FieldLogger) *Prober {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Prober{Client: client, Logger: logger}
}

// Probe runs the two reachability queries.
func (p *Prober) Probe(ctx context.Context) Availability {
	if p.Client == nil {
		return Availability{Reachable: false, Cause: CauseNotConfigured}
	}

	if _, err := p.Client.Discovery().ServerVersion(); err != nil {
		p.Logger.WithError(err).Debug("server version probe failed")
		return Availability{Reachable: false, Cause: CauseUnreachable, Err: err}
	}

	if _, err := p.Client.CoreV1().Nodes().List(ctx, metav1.ListOptions{Limit: 1}); err != nil {
		p.Logger.WithError(err).Debug("node list probe failed")
		return Availability{Reachable: false, Cause: CauseQueryFailed, Err: err}
	}

	return Availability{Reachable: true}
}

// Package cluster computes the health snapshot shown by the dashboard's
// status poller. Every snapshot is recomputed from scratch; nothing is cached.
package cluster

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/chaosdojo/chaosdojo/internal/kube"
)

// PodStatus is one row of the optional details list.
type PodStatus struct {
	Name   string `json:"name"`
	Phase  string `json:"phase"`
	Ready  bool   `json:"ready"`
	CPU    string `json:"cpu,omitempty"`
	Memory string `json:"memory,omitempty"`
}

// Snapshot is the transient health record. Simulated marks placeholder data;
// callers cannot otherwise tell a guessed snapshot from a real one.
type Snapshot struct {
	Healthy     bool
	RunningPods int
	TotalPods   int
	ReadyNodes  int
	TotalNodes  int
	Services    int
	Simulated   bool
	Timestamp   time.Time
	Pods        []PodStatus
}

// Placeholder counts reported when the cluster cannot be queried.
const (
	placeholderPods     = 3
	placeholderNodes    = 1
	placeholderServices = 2
)

// Monitor queries live pod/node/service counts, degrading to a fixed
// placeholder snapshot on any failure.
type Monitor struct {
	client  kubernetes.Interface
	metrics metricsclient.Interface
	prober  *kube.Prober
	ns      string
	logger  logrus.FieldLogger
}

// NewMonitor builds a monitor. metrics may be nil; pod usage details are then
// omitted.
func NewMonitor(client kubernetes.Interface, metrics metricsclient.Interface, prober *kube.Prober, namespace string, logger logrus.FieldLogger) *Monitor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if namespace == "" {
		namespace = "default"
	}
	return &Monitor{client: client, metrics: metrics, prober: prober, ns: namespace, logger: logger}
}

// Snapshot returns the current health view. It never returns an error: any
// failure yields the placeholder snapshot with Simulated set.
func (m *Monitor) Snapshot(ctx context.Context) Snapshot {
	if avail := m.prober.Probe(ctx); !avail.Reachable {
		m.logger.WithField("cause", avail.Cause).Debug("status degraded to placeholder")
		return m.placeholder()
	}

	pods, err := m.client.CoreV1().Pods(m.ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		m.logger.WithError(err).Warn("pod count failed")
		return m.placeholder()
	}
	nodes, err := m.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		m.logger.WithError(err).Warn("node count failed")
		return m.placeholder()
	}
	services, err := m.client.CoreV1().Services(m.ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		m.logger.WithError(err).Warn("service count failed")
		return m.placeholder()
	}

	snap := Snapshot{
		TotalPods:  len(pods.Items),
		TotalNodes: len(nodes.Items),
		Services:   len(services.Items),
		Timestamp:  time.Now().UTC(),
	}

	usage := m.podUsage(ctx)
	for _, p := range pods.Items {
		running := p.Status.Phase == v1.PodRunning
		if running {
			snap.RunningPods++
		}
		ps := PodStatus{Name: p.Name, Phase: string(p.Status.Phase), Ready: podReady(&p)}
		if u, ok := usage[p.Name]; ok {
			ps.CPU, ps.Memory = u.cpu, u.memory
		}
		snap.Pods = append(snap.Pods, ps)
	}
	for _, n := range nodes.Items {
		if nodeReady(&n) {
			snap.ReadyNodes++
		}
	}

	snap.Healthy = snap.TotalPods == 0 || snap.RunningPods == snap.TotalPods
	return snap
}

func (m *Monitor) placeholder() Snapshot {
	return Snapshot{
		Healthy:     true,
		RunningPods: placeholderPods,
		TotalPods:   placeholderPods,
		ReadyNodes:  placeholderNodes,
		TotalNodes:  placeholderNodes,
		Services:    placeholderServices,
		Simulated:   true,
		Timestamp:   time.Now().UTC(),
	}
}

type podUsage struct {
	cpu    string
	memory string
}

// podUsage reads per-pod usage from the metrics-server. A missing or failing
// metrics API only drops the details, never the snapshot.
func (m *Monitor) podUsage(ctx context.Context) map[string]podUsage {
	if m.metrics == nil {
		return nil
	}
	podMetrics, err := m.metrics.MetricsV1beta1().PodMetricses(m.ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		m.logger.WithError(err).Debug("pod metrics unavailable")
		return nil
	}

	out := make(map[string]podUsage, len(podMetrics.Items))
	for _, pm := range podMetrics.Items {
		if len(pm.Containers) == 0 {
			continue
		}
		totalCPU := pm.Containers[0].Usage.Cpu().DeepCopy()
		totalMem := pm.Containers[0].Usage.Memory().DeepCopy()
		for _, c := range pm.Containers[1:] {
			totalCPU.Add(*c.Usage.Cpu())
			totalMem.Add(*c.Usage.Memory())
		}
		out[pm.Name] = podUsage{cpu: totalCPU.String(), memory: totalMem.String()}
	}
	return out
}

func podReady(p *v1.Pod) bool {
	for _, c := range p.Status.Conditions {
		if c.Type == v1.PodReady {
			return c.Status == v1.ConditionTrue
		}
	}
	return false
}

func nodeReady(n *v1.Node) bool {
	for _, c := range n.Status.Conditions {
		if c.Type == v1.NodeReady {
			return c.Status == v1.ConditionTrue
		}
	}
	return false
}

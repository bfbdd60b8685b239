// Package chaos dispatches the predefined disruptive actions against the
// cluster: delete one pod matched by a label selector, or cordon a node with a
// scheduled uncordon.
package chaos

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/chaosdojo/chaosdojo/internal/kube"
	"github.com/chaosdojo/chaosdojo/internal/metrics"
	"github.com/chaosdojo/chaosdojo/internal/scenario"
)

// Result is the transient outcome of one action. It is produced once per
// invocation and not stored server-side beyond the history log.
type Result struct {
	RunID     string
	Success   bool
	Simulated bool
	Message   string
	Details   string
}

// Config holds the dispatch targets.
type Config struct {
	// Namespace to pick victim pods from.
	Namespace string
	// Selector matches victim pods, e.g. "app=nginx".
	Selector string
	// UncordonDelay is how long a cordoned node stays unschedulable.
	UncordonDelay time.Duration
}

// Engine executes scenarios against a live cluster, or returns canned
// simulated results when no cluster is reachable. Concurrent Execute calls
// are not coordinated; two overlapping pod deletes can race for the same
// victim, which matches the demo's semantics.
type Engine struct {
	client kubernetes.Interface
	prober *kube.Prober
	cfg    Config
	logger logrus.FieldLogger
	sched  *uncordonScheduler

	// pick selects a victim index; swapped out in tests.
	pick func(n int) int
}

// New builds an engine. client may be nil, in which case every scenario runs
// in simulated mode.
func New(client kubernetes.Interface, prober *kube.Prober, cfg Config, logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}
	if cfg.Selector == "" {
		cfg.Selector = "app=nginx"
	}
	if cfg.UncordonDelay <= 0 {
		cfg.UncordonDelay = 30 * time.Second
	}
	return &Engine{
		client: client,
		prober: prober,
		cfg:    cfg,
		logger: logger,
		sched:  newUncordonScheduler(logger),
		pick:   rand.IntN,
	}
}

// Execute runs one scenario and never returns an error: every failure mode is
// folded into the Result so the HTTP layer can stay available.
func (e *Engine) Execute(ctx context.Context, id string) Result {
	res := e.execute(ctx, id)
	// Unrecognized ids come straight from the request body; collapse them so
	// the scenario label stays bounded by the catalog.
	label := id
	if _, ok := scenario.Get(id); !ok {
		label = "unknown"
	}
	metrics.RunsTotal.WithLabelValues(label, outcome(res)).Inc()
	return res
}

func (e *Engine) execute(ctx context.Context, id string) Result {
	sc, ok := scenario.Get(id)
	if !ok {
		return Result{
			RunID:   uuid.NewString(),
			Success: false,
			Message: fmt.Sprintf("Unknown scenario %q", id),
		}
	}

	runID := uuid.NewString()
	log := e.logger.WithFields(logrus.Fields{"run": runID, "scenario": id})

	avail := e.prober.Probe(ctx)
	metrics.ProbesTotal.WithLabelValues(metrics.ProbeResult(string(avail.Cause))).Inc()
	if !avail.Reachable {
		log.WithField("cause", avail.Cause).Info("cluster unreachable, simulated run")
		return Result{
			RunID:     runID,
			Success:   false,
			Simulated: true,
			Message:   fmt.Sprintf("Simulated: no reachable cluster, so %s was not executed", sc.Name),
			Details:   fmt.Sprintf("probe cause: %s", avail.Cause),
		}
	}

	var res Result
	switch sc.Action {
	case scenario.ActionPodDelete:
		res = e.deleteRandomPod(ctx, log)
	case scenario.ActionNodeCordon:
		res = e.cordonFirstNode(ctx, log)
	default:
		res = Result{Success: false, Message: fmt.Sprintf("Scenario %q has no action bound", id)}
	}
	res.RunID = runID
	return res
}

// deleteRandomPod implements the shared mechanic of the four pod scenarios:
// pick one matching pod uniformly at random and delete it.
func (e *Engine) deleteRandomPod(ctx context.Context, log logrus.FieldLogger) Result {
	pods, err := e.client.CoreV1().Pods(e.cfg.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: e.cfg.Selector,
	})
	if err != nil {
		log.WithError(err).Warn("pod list failed")
		return Result{
			Success: false,
			Message: "Could not list candidate pods",
			Details: err.Error(),
		}
	}

	if len(pods.Items) == 0 {
		return Result{
			Success: false,
			Message: fmt.Sprintf("No pods matching %s in namespace %s. Deploy the sample nginx workload first.", e.cfg.Selector, e.cfg.Namespace),
		}
	}

	victim := pods.Items[e.pick(len(pods.Items))]
	if err := e.client.CoreV1().Pods(victim.Namespace).Delete(ctx, victim.Name, metav1.DeleteOptions{}); err != nil {
		log.WithError(err).WithField("pod", victim.Name).Warn("pod delete failed")
		return Result{
			Success: false,
			Message: fmt.Sprintf("Failed to delete pod %s/%s", victim.Namespace, victim.Name),
			Details: err.Error(),
		}
	}

	log.WithField("pod", victim.Name).Info("deleted victim pod")
	return Result{
		Success: true,
		Message: fmt.Sprintf("Deleted pod %s/%s", victim.Namespace, victim.Name),
		Details: fmt.Sprintf("%d pod(s) matched %s; victim picked at random", len(pods.Items), e.cfg.Selector),
	}
}

// cordonFirstNode marks the first-listed node unschedulable and schedules an
// uncordon after the configured delay. The uncordon is owned by a tracked,
// cancellable handle; it does not survive a process restart.
func (e *Engine) cordonFirstNode(ctx context.Context, log logrus.FieldLogger) Result {
	nodes, err := e.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		log.WithError(err).Warn("node list failed")
		return Result{
			Success: false,
			Message: "Could not list nodes",
			Details: err.Error(),
		}
	}
	if len(nodes.Items) == 0 {
		return Result{
			Success: false,
			Message: "No nodes found in the cluster",
		}
	}

	victim := nodes.Items[0].DeepCopy()
	victim.Spec.Unschedulable = true
	if _, err := e.client.CoreV1().Nodes().Update(ctx, victim, metav1.UpdateOptions{}); err != nil {
		log.WithError(err).WithField("node", victim.Name).Warn("cordon failed")
		return Result{
			Success: false,
			Message: fmt.Sprintf("Failed to cordon node %s", victim.Name),
			Details: err.Error(),
		}
	}

	log.WithField("node", victim.Name).Info("cordoned node")
	e.sched.schedule(victim.Name, e.cfg.UncordonDelay, func() {
		e.uncordon(victim.Name)
	})

	return Result{
		Success: true,
		Message: fmt.Sprintf("Cordoned node %s", victim.Name),
		Details: fmt.Sprintf("uncordon scheduled in %s", e.cfg.UncordonDelay),
	}
}

// uncordon makes one attempt to restore schedulability. Errors are logged,
// not retried.
func (e *Engine) uncordon(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	node, err := e.client.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		e.logger.WithError(err).WithField("node", name).Error("uncordon: get node failed")
		return
	}
	node = node.DeepCopy()
	node.Spec.Unschedulable = false
	if _, err := e.client.CoreV1().Nodes().Update(ctx, node, metav1.UpdateOptions{}); err != nil {
		e.logger.WithError(err).WithField("node", name).Error("uncordon failed")
		return
	}
	e.logger.WithField("node", name).Info("uncordoned node")
}

// PendingUncordons lists nodes cordoned by this engine that have not been
// uncordoned yet.
func (e *Engine) PendingUncordons() []string {
	return e.sched.pending()
}

// Flush cancels all pending uncordon timers and runs the uncordons
// immediately. Called on shutdown so nodes are not left stranded.
func (e *Engine) Flush() {
	e.sched.flush()
}

func outcome(r Result) string {
	switch {
	case r.Simulated:
		return metrics.OutcomeSimulated
	case r.Success:
		return metrics.OutcomeSuccess
	default:
		return metrics.OutcomeFailed
	}
}

package chaos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/chaosdojo/chaosdojo/internal/kube"
	"github.com/chaosdojo/chaosdojo/internal/metrics"
)

var podScenarios = []string{"pod-delete", "cpu-spike", "memory-leak", "network-delay"}

func nginxPod(name string) *v1.Pod {
	return &v1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "default",
			Labels:    map[string]string{"app": "nginx"},
		},
	}
}

func otherPod(name string) *v1.Pod {
	return &v1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "default",
			Labels:    map[string]string{"app": "redis"},
		},
	}
}

func node(name string) *v1.Node {
	return &v1.Node{ObjectMeta: metav1.ObjectMeta{Name: name}}
}

func newTestEngine(t *testing.T, cfg Config, objs ...runtime.Object) (*Engine, *fake.Clientset) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	client := fake.NewSimpleClientset(objs...)
	return New(client, kube.NewProber(client, logger), cfg, logger), client
}

func listPods(t *testing.T, client *fake.Clientset, selector string) []v1.Pod {
	t.Helper()
	pods, err := client.CoreV1().Pods("default").List(context.Background(), metav1.ListOptions{LabelSelector: selector})
	require.NoError(t, err)
	return pods.Items
}

func TestExecuteDeletesExactlyOneMatchingPod(t *testing.T) {
	for _, id := range podScenarios {
		t.Run(id, func(t *testing.T) {
			e, client := newTestEngine(t, Config{},
				nginxPod("nginx-a"), nginxPod("nginx-b"), nginxPod("nginx-c"), otherPod("redis-a"))

			res := e.Execute(context.Background(), id)
			require.True(t, res.Success, res.Message)
			assert.False(t, res.Simulated)
			assert.NotEmpty(t, res.RunID)
			assert.Contains(t, res.Message, "Deleted pod default/nginx-")

			assert.Len(t, listPods(t, client, "app=nginx"), 2)
			assert.Len(t, listPods(t, client, "app=redis"), 1)
		})
	}
}

func TestExecuteRandomVictimSelection(t *testing.T) {
	e, client := newTestEngine(t, Config{},
		nginxPod("nginx-a"), nginxPod("nginx-b"), nginxPod("nginx-c"))
	e.pick = func(n int) int {
		require.Equal(t, 3, n)
		return 1
	}

	res := e.Execute(context.Background(), "pod-delete")
	require.True(t, res.Success)

	names := []string{}
	for _, p := range listPods(t, client, "app=nginx") {
		names = append(names, p.Name)
	}
	assert.NotContains(t, names, "nginx-b")
}

func TestExecuteNoMatchingPods(t *testing.T) {
	e, client := newTestEngine(t, Config{}, otherPod("redis-a"))

	res := e.Execute(context.Background(), "pod-delete")
	assert.False(t, res.Success)
	assert.False(t, res.Simulated)
	assert.Contains(t, res.Message, "No pods matching app=nginx")

	// non-matching pods untouched
	assert.Len(t, listPods(t, client, "app=redis"), 1)
}

func TestExecutePodDeleteAPIFailure(t *testing.T) {
	e, client := newTestEngine(t, Config{}, nginxPod("nginx-a"))
	client.PrependReactor("delete", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("admission webhook denied")
	})

	res := e.Execute(context.Background(), "pod-delete")
	assert.False(t, res.Success)
	assert.Contains(t, res.Details, "admission webhook denied")
}

func TestExecuteCordonsFirstNode(t *testing.T) {
	e, client := newTestEngine(t, Config{UncordonDelay: time.Hour}, node("node-1"), node("node-2"))

	res := e.Execute(context.Background(), "disk-pressure")
	require.True(t, res.Success, res.Message)
	assert.Contains(t, res.Message, "Cordoned node node-1")

	n1, err := client.CoreV1().Nodes().Get(context.Background(), "node-1", metav1.GetOptions{})
	require.NoError(t, err)
	assert.True(t, n1.Spec.Unschedulable)

	n2, err := client.CoreV1().Nodes().Get(context.Background(), "node-2", metav1.GetOptions{})
	require.NoError(t, err)
	assert.False(t, n2.Spec.Unschedulable)

	assert.Equal(t, []string{"node-1"}, e.PendingUncordons())
}

func TestExecuteUncordonFiresOnceAfterDelay(t *testing.T) {
	e, client := newTestEngine(t, Config{UncordonDelay: 500 * time.Millisecond}, node("node-1"))

	res := e.Execute(context.Background(), "disk-pressure")
	require.True(t, res.Success)

	// still cordoned before the delay elapses
	n, err := client.CoreV1().Nodes().Get(context.Background(), "node-1", metav1.GetOptions{})
	require.NoError(t, err)
	assert.True(t, n.Spec.Unschedulable)

	require.Eventually(t, func() bool {
		n, err := client.CoreV1().Nodes().Get(context.Background(), "node-1", metav1.GetOptions{})
		return err == nil && !n.Spec.Unschedulable
	}, 5*time.Second, 10*time.Millisecond)

	assert.Empty(t, e.PendingUncordons())

	// exactly one uncordon attempt: cordon update + uncordon update
	updates := 0
	for _, a := range client.Actions() {
		if a.Matches("update", "nodes") {
			updates++
		}
	}
	assert.Equal(t, 2, updates)
}

func TestExecuteNoNodes(t *testing.T) {
	e, _ := newTestEngine(t, Config{})

	res := e.Execute(context.Background(), "disk-pressure")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "No nodes")
}

func TestFlushUncordonsImmediately(t *testing.T) {
	e, client := newTestEngine(t, Config{UncordonDelay: time.Hour}, node("node-1"))

	res := e.Execute(context.Background(), "disk-pressure")
	require.True(t, res.Success)

	e.Flush()

	n, err := client.CoreV1().Nodes().Get(context.Background(), "node-1", metav1.GetOptions{})
	require.NoError(t, err)
	assert.False(t, n.Spec.Unschedulable)
	assert.Empty(t, e.PendingUncordons())
}

func TestExecuteUnknownScenario(t *testing.T) {
	e, client := newTestEngine(t, Config{}, nginxPod("nginx-a"))

	res := e.Execute(context.Background(), "bogus")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)

	// no cluster mutation
	assert.Len(t, listPods(t, client, "app=nginx"), 1)
}

func TestExecuteUnknownScenarioMetricLabel(t *testing.T) {
	e, _ := newTestEngine(t, Config{}, nginxPod("nginx-a"))

	unknown := metrics.RunsTotal.WithLabelValues("unknown", metrics.OutcomeFailed)
	before := testutil.ToFloat64(unknown)
	series := testutil.CollectAndCount(metrics.RunsTotal)

	e.Execute(context.Background(), "bogus-9f2c")

	// the raw id never becomes a label value
	assert.Equal(t, before+1, testutil.ToFloat64(unknown))
	assert.LessOrEqual(t, testutil.CollectAndCount(metrics.RunsTotal), series+1)
}

func TestExecuteSimulatedWhenNotConfigured(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	e := New(nil, kube.NewProber(nil, logger), Config{}, logger)

	for _, id := range append(podScenarios, "disk-pressure") {
		res := e.Execute(context.Background(), id)
		assert.False(t, res.Success, id)
		assert.True(t, res.Simulated, id)
		assert.Contains(t, res.Message, "Simulated", id)
	}
}

func TestExecuteSimulatedWhenUnreachable(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	client := fake.NewSimpleClientset(nginxPod("nginx-a"))
	client.PrependReactor("list", "nodes", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("dial tcp: connection refused")
	})
	e := New(client, kube.NewProber(client, logger), Config{}, logger)

	res := e.Execute(context.Background(), "pod-delete")
	assert.False(t, res.Success)
	assert.True(t, res.Simulated)

	// victim pod untouched
	pods, err := client.CoreV1().Pods("default").List(context.Background(), metav1.ListOptions{LabelSelector: "app=nginx"})
	require.NoError(t, err)
	assert.Len(t, pods.Items, 1)
}

func TestExecuteNeverPanicsAndAlwaysHasMessage(t *testing.T) {
	e, _ := newTestEngine(t, Config{}, nginxPod("nginx-a"), node("node-1"))

	for _, id := range []string{"pod-delete", "cpu-spike", "memory-leak", "network-delay", "disk-pressure", "bogus", ""} {
		res := e.Execute(context.Background(), id)
		assert.NotEmpty(t, res.Message, id)
	}
}

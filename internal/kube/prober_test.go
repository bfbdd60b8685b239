package kube

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func TestProbeNotConfigured(t *testing.T) {
	p := NewProber(nil, nil)

	avail := p.Probe(context.Background())
	assert.False(t, avail.Reachable)
	assert.Equal(t, CauseNotConfigured, avail.Cause)
	assert.NoError(t, avail.Err)
}

func TestProbeReachable(t *testing.T) {
	client := fake.NewSimpleClientset()
	p := NewProber(client, nil)

	avail := p.Probe(context.Background())
	require.True(t, avail.Reachable)
	assert.Equal(t, CauseNone, avail.Cause)
}

func TestProbeQueryFailed(t *testing.T) {
	client := fake.NewSimpleClientset()
	client.PrependReactor("list", "nodes", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("connection refused")
	})
	p := NewProber(client, nil)

	avail := p.Probe(context.Background())
	assert.False(t, avail.Reachable)
	assert.Equal(t, CauseQueryFailed, avail.Cause)
	assert.Error(t, avail.Err)
}

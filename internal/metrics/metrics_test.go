package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/forwardproxy/internal/core/domain"
	"github.com/thushan/forwardproxy/pkg/eventbus"
)

func TestCollector_RecordsCacheAndProxyEvents(t *testing.T) {
	bus := eventbus.New[domain.ProxyEvent]()
	collector := NewCollector()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		collector.Subscribe(ctx, bus)
		close(done)
	}()

	// give the subscriber time to register before publishing.
	time.Sleep(10 * time.Millisecond)

	bus.Publish(domain.ProxyEvent{Type: domain.EventTypeCacheHit, Bytes: 10})
	bus.Publish(domain.ProxyEvent{Type: domain.EventTypeCacheMiss})
	bus.Publish(domain.ProxyEvent{Type: domain.EventTypeProxySuccess, Host: "example.test", Bytes: 20})
	bus.Publish(domain.ProxyEvent{Type: domain.EventTypeProxyError})

	require.Eventually(t, func() bool {
		snap := collector.Snapshot()
		return snap.CacheHits == 1 && snap.CacheMisses == 1 && snap.Successes == 1 && snap.Errors == 1
	}, time.Second, 5*time.Millisecond)

	snap := collector.Snapshot()
	assert.Equal(t, int64(30), snap.BytesServed)
	assert.Equal(t, int64(1), snap.HostCounts["example.test"])
	assert.InDelta(t, 0.5, snap.CacheHitRatio(), 0.0001)

	cancel()
	<-done
}

func TestSnapshot_CacheHitRatioNoTraffic(t *testing.T) {
	var snap Snapshot
	assert.Equal(t, float64(0), snap.CacheHitRatio())
}

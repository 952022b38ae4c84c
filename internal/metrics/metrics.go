// Package metrics centralises proxy-wide counters the way
// internal/adapter/stats centralises endpoint counters: everything
// reports to one collector instead of each component keeping its own
// numbers, built on xsync's lock-free counters and map for high
// concurrency under the dispatcher's per-connection goroutines.
package metrics

import (
	"context"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/forwardproxy/internal/core/domain"
	"github.com/thushan/forwardproxy/pkg/eventbus"
)

// Collector accumulates cache and proxy activity published on the
// event bus. Safe for concurrent use.
type Collector struct {
	cacheHits   *xsync.Counter
	cacheMisses *xsync.Counter
	cacheEvicts *xsync.Counter
	tunnels     *xsync.Counter
	successes   *xsync.Counter
	errors      *xsync.Counter
	bytesServed *xsync.Counter

	hostRequests *xsync.Map[string, *xsync.Counter]
}

// NewCollector builds an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		cacheHits:    xsync.NewCounter(),
		cacheMisses:  xsync.NewCounter(),
		cacheEvicts:  xsync.NewCounter(),
		tunnels:      xsync.NewCounter(),
		successes:    xsync.NewCounter(),
		errors:       xsync.NewCounter(),
		bytesServed:  xsync.NewCounter(),
		hostRequests: xsync.NewMap[string, *xsync.Counter](),
	}
}

// Subscribe consumes events from bus until ctx is cancelled, updating
// the collector's counters. Run it on its own goroutine.
func (c *Collector) Subscribe(ctx context.Context, bus *eventbus.EventBus[domain.ProxyEvent]) {
	ch, cancel := bus.Subscribe(ctx)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			c.record(ev)
		}
	}
}

func (c *Collector) record(ev domain.ProxyEvent) {
	switch ev.Type {
	case domain.EventTypeCacheHit:
		c.cacheHits.Inc()
		c.bytesServed.Add(int64(ev.Bytes))
	case domain.EventTypeCacheMiss:
		c.cacheMisses.Inc()
	case domain.EventTypeCacheEvict:
		c.cacheEvicts.Inc()
	case domain.EventTypeTunnelOpened, domain.EventTypeTunnelClosed:
		c.tunnels.Inc()
	case domain.EventTypeProxySuccess:
		c.successes.Inc()
		c.bytesServed.Add(int64(ev.Bytes))
		if ev.Host != "" {
			c.hostCounter(ev.Host).Inc()
		}
	case domain.EventTypeProxyError:
		c.errors.Inc()
	}
}

func (c *Collector) hostCounter(host string) *xsync.Counter {
	counter, _ := c.hostRequests.LoadOrCompute(host, func() (*xsync.Counter, bool) {
		return xsync.NewCounter(), false
	})
	return counter
}

// Snapshot is a point-in-time read of every counter, suitable for
// logging or a status endpoint.
type Snapshot struct {
	CacheHits   int64
	CacheMisses int64
	CacheEvicts int64
	Tunnels     int64
	Successes   int64
	Errors      int64
	BytesServed int64
	HostCounts  map[string]int64
}

// Snapshot reads every counter without blocking writers.
func (c *Collector) Snapshot() Snapshot {
	hosts := make(map[string]int64)
	c.hostRequests.Range(func(host string, counter *xsync.Counter) bool {
		hosts[host] = counter.Value()
		return true
	})

	return Snapshot{
		CacheHits:   c.cacheHits.Value(),
		CacheMisses: c.cacheMisses.Value(),
		CacheEvicts: c.cacheEvicts.Value(),
		Tunnels:     c.tunnels.Value(),
		Successes:   c.successes.Value(),
		Errors:      c.errors.Value(),
		BytesServed: c.bytesServed.Value(),
		HostCounts:  hosts,
	}
}

// CacheHitRatio returns hits / (hits + misses), or 0 if there has been
// no cache traffic yet.
func (s Snapshot) CacheHitRatio() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

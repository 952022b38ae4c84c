package domain

import "time"

// EventType identifies the kind of notable occurrence a worker publishes
// onto the event bus for metrics/observability subscribers.
type EventType int

const (
	EventTypeCacheHit EventType = iota
	EventTypeCacheMiss
	EventTypeCacheEvict
	EventTypeTunnelOpened
	EventTypeTunnelClosed
	EventTypeProxySuccess
	EventTypeProxyError
)

func (t EventType) String() string {
	switch t {
	case EventTypeCacheHit:
		return "cache_hit"
	case EventTypeCacheMiss:
		return "cache_miss"
	case EventTypeCacheEvict:
		return "cache_evict"
	case EventTypeTunnelOpened:
		return "tunnel_opened"
	case EventTypeTunnelClosed:
		return "tunnel_closed"
	case EventTypeProxySuccess:
		return "proxy_success"
	case EventTypeProxyError:
		return "proxy_error"
	default:
		return "unknown"
	}
}

// ProxyEvent is the single event payload type published on the proxy's
// event bus; ConnID/Host/Bytes/Err are populated according to Type.
type ProxyEvent struct {
	Type      EventType
	ConnID    string
	Host      string
	Bytes     int
	Err       error
	Timestamp time.Time
}

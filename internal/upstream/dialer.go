// Package upstream opens TCP connections to origin servers on behalf of
// the exchange and tunnel drivers (spec.md §4.2).
package upstream

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/thushan/forwardproxy/internal/adapter/proxy/common"
	"github.com/thushan/forwardproxy/internal/core/domain"
	"github.com/thushan/forwardproxy/internal/util"
)

// Dialer opens TCP connections to (host, port). DNS resolution and
// "first A record" address selection are delegated to net.Dialer's
// runtime resolver — Go's DialContext already performs the single
// connect-to-first-address behaviour spec.md §4.2 describes, so no
// separate net.LookupHost call is made here.
type Dialer struct {
	netDialer net.Dialer
	retryBase time.Duration
	retryMax  time.Duration
}

// NewDialer builds a Dialer with a connect timeout and a bounded,
// exponentially-backed-off retry for transient dial failures.
func NewDialer(connectTimeout time.Duration) *Dialer {
	return &Dialer{
		netDialer: net.Dialer{Timeout: connectTimeout},
		retryBase: 50 * time.Millisecond,
		retryMax:  500 * time.Millisecond,
	}
}

// Connect dials (host, port), retrying once if the first attempt fails
// with a transient error (timeout or temporary DNS failure) — the same
// util.CalculateExponentialBackoff helper the teacher uses for endpoint
// connection retries. A refused connection is not retried.
func (d *Dialer) Connect(ctx context.Context, host, port string) (net.Conn, error) {
	addr := net.JoinHostPort(host, port)

	conn, err := d.netDialer.DialContext(ctx, "tcp", addr)
	if err == nil {
		return conn, nil
	}

	if !common.IsTransient(err) {
		return nil, classifyDialErr(err)
	}

	select {
	case <-time.After(util.CalculateExponentialBackoff(1, d.retryBase, d.retryMax, 0.2)):
	case <-ctx.Done():
		return nil, domain.NewError(domain.KindUpstreamConnect, ctx.Err())
	}

	conn, err = d.netDialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyDialErr(err)
	}
	return conn, nil
}

func classifyDialErr(err error) error {
	var dnsErr *net.DNSError
	if ok := asDNSError(err, &dnsErr); ok {
		return domain.NewError(domain.KindUpstreamResolve, err)
	}
	return domain.NewError(domain.KindUpstreamConnect, err)
}

func asDNSError(err error, target **net.DNSError) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if de, ok := err.(*net.DNSError); ok {
			*target = de
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// FormatAddr renders a host/port pair for log messages.
func FormatAddr(host, port string) string {
	return fmt.Sprintf("%s:%s", host, port)
}

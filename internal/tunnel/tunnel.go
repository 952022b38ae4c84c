// Package tunnel implements the CONNECT tunnel driver from spec.md §4.4:
// once the 200 Connection Established reply is sent, the proxy relays
// opaque bytes in both directions until either side closes or the link
// goes idle past the configured timeout.
package tunnel

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/thushan/forwardproxy/internal/core/domain"
)

// EstablishedResponse is the fixed reply sent to the client once the
// upstream TCP connection succeeds.
const EstablishedResponse = "HTTP/1.1 200 Connection Established\r\nProxy-agent: ProxyServer/1.0\r\n\r\n"

// Dialer is the subset of upstream.Dialer the tunnel driver needs.
type Dialer interface {
	Connect(ctx context.Context, host, port string) (net.Conn, error)
}

// Driver opens and pumps CONNECT tunnels.
type Driver struct {
	dialer      Dialer
	idleTimeout time.Duration
}

// NewDriver builds a Driver. idleTimeout is spec.md's 30s tunnel idle
// timeout: the deadline is refreshed on every successful read from
// either side of the tunnel.
func NewDriver(dialer Dialer, idleTimeout time.Duration) *Driver {
	return &Driver{dialer: dialer, idleTimeout: idleTimeout}
}

// Result reports how much data moved, for metrics/logging.
type Result struct {
	ClientToUpstream int64
	UpstreamToClient int64
}

// Run dials host:port, writes EstablishedResponse to client, and pumps
// bytes until one side closes or the tunnel goes idle. A dial failure
// returns before anything is written, so the caller can still send a
// proxy-generated error response instead.
func (d *Driver) Run(ctx context.Context, client net.Conn, host, port string) (Result, error) {
	var res Result

	upstream, err := d.dialer.Connect(ctx, host, port)
	if err != nil {
		return res, err
	}
	defer upstream.Close()

	if _, err := client.Write([]byte(EstablishedResponse)); err != nil {
		return res, domain.NewError(domain.KindClientIO, err)
	}

	type copyResult struct {
		n   int64
		err error
	}
	clientToUpstream := make(chan copyResult, 1)
	upstreamToClient := make(chan copyResult, 1)

	var lastActive atomic.Int64
	lastActive.Store(time.Now().UnixNano())

	go func() {
		n, err := pump(upstream, client, d.idleTimeout, &lastActive)
		clientToUpstream <- copyResult{n, err}
	}()
	go func() {
		n, err := pump(client, upstream, d.idleTimeout, &lastActive)
		upstreamToClient <- copyResult{n, err}
	}()

	var gotClientToUpstream, gotUpstreamToClient bool
	for !gotClientToUpstream || !gotUpstreamToClient {
		select {
		case r := <-clientToUpstream:
			res.ClientToUpstream = r.n
			gotClientToUpstream = true
			// either side finishing ends the tunnel; unblock the other
			// pump by closing both ends it reads/writes from.
			client.Close()
			upstream.Close()
		case r := <-upstreamToClient:
			res.UpstreamToClient = r.n
			gotUpstreamToClient = true
			client.Close()
			upstream.Close()
		}
	}

	return res, nil
}

// pump copies from src to dst, refreshing a read deadline on src before
// every read so an idle (no traffic either way for idleTimeout) tunnel
// is torn down rather than held open forever. lastActive is shared by
// both directions: a read timeout only ends the pump when neither
// direction has moved data for idleTimeout.
func pump(dst io.Writer, src net.Conn, idleTimeout time.Duration, lastActive *atomic.Int64) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64

	for {
		if idleTimeout > 0 {
			_ = src.SetReadDeadline(time.Now().Add(idleTimeout))
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			lastActive.Store(time.Now().UnixNano())
			wn, werr := dst.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			var ne net.Error
			if errors.As(rerr, &ne) && ne.Timeout() &&
				time.Since(time.Unix(0, lastActive.Load())) < idleTimeout {
				continue
			}
			return total, rerr
		}
	}
}

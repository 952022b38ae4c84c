// Package exchange implements the HTTP exchange driver from spec.md
// §4.4: it builds the upstream request, streams the response back to
// the client, and opportunistically caches it on clean completion.
package exchange

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/thushan/forwardproxy/internal/cache"
	"github.com/thushan/forwardproxy/internal/core/domain"
	"github.com/thushan/forwardproxy/pkg/pool"
)

// Dialer is the subset of upstream.Dialer the exchange driver needs,
// named here so tests can substitute a mock origin.
type Dialer interface {
	Connect(ctx context.Context, host, port string) (net.Conn, error)
}

// Driver runs the non-CONNECT request/response exchange.
type Driver struct {
	dialer       Dialer
	store        *cache.Store
	maxBytes     int
	scratch      *pool.Pool[*[]byte]
	onCacheError func(error)
}

// NewDriver builds a Driver. maxBytes is spec.md's MAX_BYTES=4096,
// applied both to the outbound request size and the scratch-buffer read
// size used while streaming the response. onCacheError, if non-nil, is
// invoked when a completed response could not be cached (spec.md §4.4:
// "cache insertion failures are logged but do not affect the client
// response") — it never changes what was already sent to the client.
func NewDriver(dialer Dialer, store *cache.Store, maxBytes int, onCacheError func(error)) *Driver {
	return &Driver{
		dialer:       dialer,
		store:        store,
		maxBytes:     maxBytes,
		onCacheError: onCacheError,
		scratch: pool.NewLitePool(func() *[]byte {
			b := make([]byte, maxBytes)
			return &b
		}),
	}
}

// Result reports what happened, so the dispatcher can translate a
// failure into the right status code.
type Result struct {
	// BytesToClient is non-zero once any response byte has reached the
	// client; per spec.md §7 (UpstreamIO), no error status is sent once
	// streaming has begun, regardless of how the loop later ends.
	BytesToClient int
}

// Exchange builds the upstream request from req, sends it, and streams
// the response to client. fingerprint is the raw pre-rewrite client
// bytes used as the cache key on clean completion (spec.md §9).
func (d *Driver) Exchange(ctx context.Context, client net.Conn, req *domain.ParsedRequest, fingerprint []byte) (Result, error) {
	var res Result

	request, err := buildRequest(req, d.maxBytes)
	if err != nil {
		return res, err
	}

	port := req.Port
	if port == "" {
		port = "80"
	}

	upstream, err := d.dialer.Connect(ctx, req.Host, port)
	if err != nil {
		return res, err
	}
	defer upstream.Close()

	if _, err := writeAll(upstream, request); err != nil {
		return res, domain.NewError(domain.KindUpstreamIO, err)
	}

	return d.stream(client, upstream, fingerprint)
}

// buildRequest assembles the request line, forces Connection: close,
// ensures Host is present, and serializes the remaining headers. Fails
// with KindTooLarge if the result would not fit in maxBytes.
func buildRequest(req *domain.ParsedRequest, maxBytes int) ([]byte, error) {
	var b strings.Builder
	b.WriteString("GET ")
	b.WriteString(req.Path)
	b.WriteString(" ")
	b.WriteString(req.Version)
	b.WriteString("\r\n")

	req.Set("Connection", "close")
	if _, ok := req.Get("Host"); !ok {
		req.Set("Host", req.Host)
	}

	for _, h := range req.Headers {
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")

	out := b.String()
	if len(out) > maxBytes {
		return nil, domain.NewError(domain.KindTooLarge, fmt.Errorf("request %d bytes exceeds %d", len(out), maxBytes))
	}
	return []byte(out), nil
}

// stream implements spec.md §4.4's receive loop: read into a pooled
// scratch buffer, forward to the client, and grow-by-doubling an
// assembly buffer for cache insertion.
func (d *Driver) stream(client, upstream net.Conn, fingerprint []byte) (Result, error) {
	var res Result

	scratch := d.scratch.Get()
	defer d.scratch.Put(scratch)

	assembled := make([]byte, 0, d.maxBytes)

	for {
		n, err := upstream.Read(*scratch)
		if n > 0 {
			if _, werr := writeAll(client, (*scratch)[:n]); werr != nil {
				// short write to client: abort without caching.
				return res, domain.NewError(domain.KindClientIO, werr)
			}
			res.BytesToClient += n
			assembled = appendGrowing(assembled, (*scratch)[:n], d.maxBytes)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			if res.BytesToClient > 0 {
				// bytes already streamed: spec.md §7 says no error
				// status is sent, the client just sees a truncated body.
				return res, nil
			}
			return res, domain.NewError(domain.KindUpstreamIO, err)
		}
		if n == 0 {
			break
		}
	}

	if err := d.store.Insert(string(fingerprint), assembled); err != nil && d.onCacheError != nil {
		d.onCacheError(err)
	}
	return res, nil
}

// appendGrowing appends chunk to buf, growing buf's capacity by at
// least minGrow (doubling preferred) whenever chunk would not fit.
func appendGrowing(buf, chunk []byte, minGrow int) []byte {
	need := len(buf) + len(chunk)
	if need <= cap(buf) {
		return append(buf, chunk...)
	}

	newCap := cap(buf) * 2
	if newCap < need {
		newCap = need
	}
	if newCap < cap(buf)+minGrow {
		newCap = cap(buf) + minGrow
	}

	grown := make([]byte, len(buf), newCap)
	copy(grown, buf)
	return append(grown, chunk...)
}

func writeAll(w io.Writer, b []byte) (int, error) {
	total := 0
	for total < len(b) {
		n, err := w.Write(b[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// ConnectTimeout is exported for callers that want a consistent default
// when constructing an upstream.Dialer for this driver.
const ConnectTimeout = 10 * time.Second

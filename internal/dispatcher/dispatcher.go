// Package dispatcher implements the accept loop and per-connection
// worker state machine from spec.md §4.6: admission-controlled fan-out
// over a counting semaphore, classify → parse → (cache | exchange |
// tunnel) → fixed response on error.
package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/thushan/forwardproxy/internal/adapter/proxy/common"
	"github.com/thushan/forwardproxy/internal/cache"
	"github.com/thushan/forwardproxy/internal/classify"
	"github.com/thushan/forwardproxy/internal/core/domain"
	"github.com/thushan/forwardproxy/internal/exchange"
	"github.com/thushan/forwardproxy/internal/parser"
	"github.com/thushan/forwardproxy/internal/tunnel"
	"github.com/thushan/forwardproxy/pkg/eventbus"
)

// Exchanger runs the non-CONNECT request/response exchange.
type Exchanger interface {
	Exchange(ctx context.Context, client net.Conn, req *domain.ParsedRequest, fingerprint []byte) (exchange.Result, error)
}

// Tunneler runs a CONNECT tunnel.
type Tunneler interface {
	Run(ctx context.Context, client net.Conn, host, port string) (tunnel.Result, error)
}

// Server owns the listener, the admission semaphore and the shared
// drivers every worker uses.
type Server struct {
	ListenHost string
	ListenPort string
	MaxClients int
	MaxBytes   int

	Store     *cache.Store
	Exchanger Exchanger
	Tunneler  Tunneler
	Events    *eventbus.EventBus[domain.ProxyEvent]
	Logger    *slog.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

// New builds a Server. The admission semaphore is sized to maxClients
// per spec.md's MAX_CLIENTS bound.
func New(listenHost, listenPort string, maxClients, maxBytes int, store *cache.Store, exchanger Exchanger, tunneler Tunneler, events *eventbus.EventBus[domain.ProxyEvent], logger *slog.Logger) *Server {
	return &Server{
		ListenHost: listenHost,
		ListenPort: listenPort,
		MaxClients: maxClients,
		MaxBytes:   maxBytes,
		Store:      store,
		Exchanger:  exchanger,
		Tunneler:   tunneler,
		Events:     events,
		Logger:     logger,
		sem:        make(chan struct{}, maxClients),
	}
}

// Serve runs the accept loop until ctx is cancelled or Accept fails.
// Each accepted connection acquires one admission slot (blocking if
// MaxClients are already in flight) and is handled on its own
// goroutine, detached from the caller.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				return err
			}
		}

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			conn.Close()
			s.wg.Wait()
			return nil
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			defer func() {
				if r := recover(); r != nil {
					s.logError("panic handling connection", fmt.Errorf("%v", r))
				}
			}()
			s.handle(ctx, conn)
		}()
	}
}

// Wait blocks until every in-flight worker has released its slot.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	head, err := readHead(conn, s.MaxBytes)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.respondError(conn, err, false)
		return
	}

	result := classify.Classify(head, s.ListenHost, s.ListenPort)

	switch result.Decision {
	case classify.DecisionConnect:
		s.handleConnect(ctx, conn, result)
	case classify.DecisionDirect:
		s.handleDirect(conn, head)
	case classify.DecisionForward:
		s.handleForward(ctx, conn, head, result.Forwarded)
	}
}

func (s *Server) handleConnect(ctx context.Context, conn net.Conn, result classify.Result) {
	_, err := s.Tunneler.Run(ctx, conn, result.ConnectHost, result.ConnectPort)
	if err != nil {
		s.respondError(conn, err, true)
		return
	}
	s.publish(domain.EventTypeTunnelClosed, result.ConnectHost, 0, nil)
}

func (s *Server) handleDirect(conn net.Conn, head []byte) {
	lineEnd := bytes.Index(head, []byte("\r\n"))
	requestLine := string(head)
	if lineEnd != -1 {
		requestLine = string(head[:lineEnd])
	}

	if parts := splitRequestLine(requestLine); parts != "/" {
		_ = writeFixedResponse(conn, 404, errorBody(404))
		return
	}

	_ = writeFixedResponse(conn, 200, infoPageBody)
}

// splitRequestLine returns just the path token of a "METHOD PATH
// VERSION" request line, or "" if it's not well-formed.
func splitRequestLine(line string) string {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func (s *Server) handleForward(ctx context.Context, conn net.Conn, fingerprint, forwarded []byte) {
	if cached, ok := s.Store.Lookup(string(fingerprint)); ok {
		if _, err := conn.Write(cached); err == nil {
			s.publish(domain.EventTypeCacheHit, "", len(cached), nil)
		}
		return
	}
	s.publish(domain.EventTypeCacheMiss, "", 0, nil)

	req, err := parser.Parse(forwarded)
	if err != nil {
		s.respondError(conn, err, false)
		return
	}

	if !req.IsSupportedVersion() {
		s.respondError(conn, domain.NewError(domain.KindUnsupportedVersion, nil), false)
		return
	}

	if !req.IsGET() {
		s.respondError(conn, domain.NewError(domain.KindUnsupportedMethod, nil), false)
		return
	}

	_, err = s.Exchanger.Exchange(ctx, conn, req, fingerprint)
	if err != nil {
		s.respondError(conn, err, false)
		return
	}
	s.publish(domain.EventTypeProxySuccess, req.Host, 0, nil)
}

func (s *Server) respondError(conn net.Conn, err error, isConnect bool) {
	kind, ok := domain.KindOf(err)
	if !ok {
		kind = domain.KindOutOfMemory
	}

	code, respond := statusForError(kind, isConnect)
	if respond {
		_ = writeFixedResponse(conn, code, errorBody(code))
	}
	s.publish(domain.EventTypeProxyError, "", 0, err)
	s.logError("connection error", err)
}

func (s *Server) publish(t domain.EventType, host string, nbytes int, err error) {
	if s.Events == nil {
		return
	}
	s.Events.Publish(domain.ProxyEvent{Type: t, Host: host, Bytes: nbytes, Err: err})
}

// logError logs err, rewording upstream I/O failures into the friendlier
// phrasing the common adapter produces for operators scanning logs.
func (s *Server) logError(msg string, err error) {
	if s.Logger == nil {
		return
	}

	reported := err
	if kind, ok := domain.KindOf(err); ok {
		switch kind {
		case domain.KindUpstreamResolve, domain.KindUpstreamConnect, domain.KindUpstreamIO:
			reported = common.MakeUserFriendlyError(errors.Unwrap(err), 0, "streaming")
		}
	}

	s.Logger.Error(msg, "error", reported)
}

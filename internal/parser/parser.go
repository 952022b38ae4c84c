// Package parser implements the external parser contract referenced by
// spec.md §6: it turns a raw byte buffer into method/host/port/path/
// version/headers. The core treats the parser as an external
// collaborator; this is a concrete implementation of that contract,
// grounded on Go's own net/http request-line tokenizing conventions
// (the teacher never parses raw bytes itself — it proxies already-parsed
// *http.Request values — so this package is new code, not adapted).
package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/thushan/forwardproxy/internal/core/domain"
)

// Parse reads a request line and headers from buf and returns a
// *domain.ParsedRequest. It returns a *domain.Error wrapping
// KindParseFailure on any malformed input, per spec.md §4.3's "if the
// parser fails, the worker returns HTTP 400".
func Parse(buf []byte) (*domain.ParsedRequest, error) {
	r := bufio.NewReader(bytes.NewReader(buf))

	requestLine, err := readLine(r)
	if err != nil {
		return nil, domain.NewError(domain.KindParseFailure, err)
	}

	method, target, version, err := splitRequestLine(requestLine)
	if err != nil {
		return nil, domain.NewError(domain.KindParseFailure, err)
	}

	headers, err := readHeaders(r)
	if err != nil {
		return nil, domain.NewError(domain.KindParseFailure, err)
	}

	req := &domain.ParsedRequest{
		Method:  method,
		Version: version,
		Headers: headers,
	}

	host, port, path, err := resolveTarget(target, req)
	if err != nil {
		return nil, domain.NewError(domain.KindParseFailure, err)
	}
	req.Host = host
	req.Port = port
	req.Path = path

	return req, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading line: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func splitRequestLine(line string) (method, target, version string, err error) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("malformed request line %q", line)
	}
	return parts[0], parts[1], parts[2], nil
}

func readHeaders(r *bufio.Reader) ([]domain.Header, error) {
	var headers []domain.Header
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && line == "" {
				break
			}
			return nil, fmt.Errorf("reading headers: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header %q", line)
		}
		headers = append(headers, domain.Header{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}
	return headers, nil
}

// resolveTarget extracts host/port/path from an absolute-form,
// origin-form or CONNECT request target. Origin-form requests must carry
// a Host header; absolute-form requests carry host[:port] in the target
// itself, and CONNECT requests carry host[:port] as the whole target.
func resolveTarget(target string, req *domain.ParsedRequest) (host, port, path string, err error) {
	if req.Method == "CONNECT" {
		host, port = splitHostPort(target, defaultPortFor(req.Method))
		return host, port, "", nil
	}

	if strings.HasPrefix(target, "http://") {
		rest := strings.TrimPrefix(target, "http://")
		slash := strings.IndexByte(rest, '/')
		var hostport string
		if slash == -1 {
			hostport, path = rest, "/"
		} else {
			hostport, path = rest[:slash], rest[slash:]
		}
		host, port = splitHostPort(hostport, defaultPortFor(req.Method))
		return host, port, path, nil
	}

	path = target
	if hv, ok := req.Get("Host"); ok && hv != "" {
		host, port = splitHostPort(hv, defaultPortFor(req.Method))
		return host, port, path, nil
	}

	return "", "", "", fmt.Errorf("origin-form request missing Host header")
}

func splitHostPort(hostport, defaultPort string) (host, port string) {
	if idx := strings.LastIndexByte(hostport, ':'); idx != -1 {
		return hostport[:idx], hostport[idx+1:]
	}
	return hostport, defaultPort
}

func defaultPortFor(method string) string {
	if method == "CONNECT" {
		return "443"
	}
	return "80"
}

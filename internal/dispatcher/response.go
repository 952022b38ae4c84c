package dispatcher

import (
	"fmt"
	"net"
	"time"

	"github.com/thushan/forwardproxy/internal/core/domain"
)

// httpTimeFormat is the RFC-1123 layout used by the Date header, spelled
// out locally so this package doesn't need net/http just for the
// constant.
const httpTimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

var statusText = map[int]string{
	200: "OK",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	505: "HTTP Version Not Supported",
}

// writeFixedResponse sends one of the proxy's fixed error or info pages:
// exact status line, Content-Length, Connection: close, Content-Type,
// a fresh Date header and the Server identity.
func writeFixedResponse(conn net.Conn, code int, body string) error {
	text := statusText[code]
	if text == "" {
		text = "Internal Server Error"
	}

	response := fmt.Sprintf(
		"HTTP/1.1 %d %s\r\nDate: %s\r\nServer: ProxyServer/1.0\r\nContent-Type: text/html\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		code, text, time.Now().UTC().Format(httpTimeFormat), len(body), body,
	)

	_, err := conn.Write([]byte(response))
	return err
}

func errorBody(code int) string {
	return fmt.Sprintf("<html><body><h1>%d %s</h1></body></html>", code, statusText[code])
}

const infoPageBody = "<html><body><h1>Proxy Server</h1><p>This is a forward HTTP proxy. Configure your client to use it and it will relay your requests.</p></body></html>"

// statusForError maps a domain.Kind to the status code the client sees,
// per spec §7's error-kind table. isConnect selects the CONNECT-path
// variant where it differs from the GET-path one (upstream failures are
// 500 on GET, 502 on CONNECT).
func statusForError(kind domain.Kind, isConnect bool) (code int, respond bool) {
	switch kind {
	case domain.KindClientIO:
		return 0, false
	case domain.KindParseFailure:
		return 400, true
	case domain.KindUnsupportedMethod:
		return 501, true
	case domain.KindUnsupportedVersion:
		return 400, true
	case domain.KindUpstreamResolve, domain.KindUpstreamConnect, domain.KindUpstreamIO:
		if isConnect {
			return 502, true
		}
		return 500, true
	case domain.KindTooLarge:
		return 500, true
	case domain.KindOutOfMemory:
		return 500, true
	default:
		return 500, true
	}
}

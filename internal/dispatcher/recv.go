package dispatcher

import (
	"bytes"
	"fmt"
	"io"
	"net"

	"github.com/thushan/forwardproxy/internal/core/domain"
)

// readHead reads from conn until the blank line terminating a request's
// headers ("\r\n\r\n"), returning the raw bytes up to and including it.
// It reads in 512-byte chunks; if more than maxBytes have been buffered
// and the terminator has still not arrived, it fails with KindTooLarge.
// Returns io.EOF unchanged if the client
// closed before sending anything.
func readHead(conn net.Conn, maxBytes int) ([]byte, error) {
	buf := make([]byte, 0, 512)
	chunk := make([]byte, 512)

	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if idx := bytes.Index(buf, []byte("\r\n\r\n")); idx != -1 {
				return buf[:idx+4], nil
			}
			if len(buf) > maxBytes {
				return nil, domain.NewError(domain.KindTooLarge, fmt.Errorf("request head exceeds %d bytes", maxBytes))
			}
		}
		if err != nil {
			if err == io.EOF && len(buf) == 0 {
				return nil, io.EOF
			}
			return nil, domain.NewError(domain.KindClientIO, err)
		}
	}
}

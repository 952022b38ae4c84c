package upstream

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/forwardproxy/internal/core/domain"
)

func TestDialer_ConnectSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	d := NewDialer(2 * time.Second)
	conn, err := d.Connect(context.Background(), host, port)
	require.NoError(t, err)
	defer conn.Close()
}

func TestDialer_ConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	ln.Close() // nothing listening now

	d := NewDialer(500 * time.Millisecond)
	_, err = d.Connect(context.Background(), "127.0.0.1", port)
	require.Error(t, err)

	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindUpstreamConnect, kind)
}

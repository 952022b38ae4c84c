package tunnel

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type directDialer struct {
	conn net.Conn
	err  error
}

func (d *directDialer) Connect(ctx context.Context, host, port string) (net.Conn, error) {
	return d.conn, d.err
}

// echoUpstream accepts one connection and echoes whatever it reads.
func echoUpstream(t *testing.T) (net.Conn, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	serverSide := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			serverSide <- conn
		}
	}()

	clientSide, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	server := <-serverSide
	go func() {
		io.Copy(server, server)
	}()

	return clientSide, func() {
		clientSide.Close()
		server.Close()
		ln.Close()
	}
}

func TestDriver_RunEchoesRoundTrip(t *testing.T) {
	upstream, cleanup := echoUpstream(t)
	defer cleanup()

	clientSide, driverSide := net.Pipe()
	driver := NewDriver(&directDialer{conn: upstream}, 2*time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := driver.Run(context.Background(), driverSide, "example.test", "443")
		done <- err
	}()

	// read the 200 Connection Established reply
	established := make([]byte, len(EstablishedResponse))
	_, err := io.ReadFull(clientSide, established)
	require.NoError(t, err)
	assert.Equal(t, EstablishedResponse, string(established))

	payload := make([]byte, 64*1024)
	_, err = rand.Read(payload)
	require.NoError(t, err)

	go func() {
		clientSide.Write(payload)
	}()

	received := make([]byte, len(payload))
	_, err = io.ReadFull(clientSide, received)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, received))

	clientSide.Close()
	<-done
}

func TestDriver_DialFailurePropagates(t *testing.T) {
	clientSide, driverSide := net.Pipe()
	defer clientSide.Close()

	wantErr := io.ErrClosedPipe
	driver := NewDriver(&directDialer{err: wantErr}, time.Second)

	_, err := driver.Run(context.Background(), driverSide, "example.test", "443")
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}

func TestDriver_IdleTimeoutTearsDownTunnel(t *testing.T) {
	upstreamClient, upstreamServer := net.Pipe()
	defer upstreamServer.Close()

	clientSide, driverSide := net.Pipe()
	driver := NewDriver(&directDialer{conn: upstreamClient}, 50*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := driver.Run(context.Background(), driverSide, "example.test", "443")
		done <- err
	}()

	established := make([]byte, len(EstablishedResponse))
	_, err := io.ReadFull(clientSide, established)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tunnel did not tear down after going idle")
	}
}

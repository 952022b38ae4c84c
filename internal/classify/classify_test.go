package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Connect(t *testing.T) {
	r := Classify([]byte("CONNECT example.test:443 HTTP/1.1\r\n\r\n"), "localhost", "8080")
	assert.Equal(t, DecisionConnect, r.Decision)
	assert.Equal(t, "example.test", r.ConnectHost)
	assert.Equal(t, "443", r.ConnectPort)
}

func TestClassify_ConnectNoPort(t *testing.T) {
	r := Classify([]byte("CONNECT example.test HTTP/1.1\r\n\r\n"), "localhost", "8080")
	assert.Equal(t, DecisionConnect, r.Decision)
	assert.Equal(t, "example.test", r.ConnectHost)
	assert.Equal(t, "443", r.ConnectPort)
}

func TestClassify_DirectToSelf(t *testing.T) {
	r := Classify([]byte("GET / HTTP/1.1\r\nHost: 127.0.0.1:8080\r\n\r\n"), "localhost", "8080")
	assert.Equal(t, DecisionDirect, r.Decision)
}

func TestClassify_DirectToSelfLocalhost(t *testing.T) {
	r := Classify([]byte("GET / HTTP/1.1\r\nHost: localhost:8080\r\n\r\n"), "localhost", "8080")
	assert.Equal(t, DecisionDirect, r.Decision)
}

func TestClassify_OriginFormRewrite(t *testing.T) {
	buf := []byte("GET /foo HTTP/1.1\r\nHost: example.test\r\n\r\n")
	r := Classify(buf, "localhost", "8080")

	require := assert.New(t)
	require.Equal(DecisionForward, r.Decision)
	require.Equal("GET http://example.test/foo HTTP/1.1\r\nHost: example.test\r\n\r\n", string(r.Forwarded))
}

func TestClassify_AbsoluteFormPassthrough(t *testing.T) {
	buf := []byte("GET http://example.test/foo HTTP/1.1\r\nHost: example.test\r\n\r\n")
	r := Classify(buf, "localhost", "8080")

	assert.Equal(t, DecisionForward, r.Decision)
	assert.Equal(t, buf, r.Forwarded)
}

func TestClassify_OtherMethodPassthrough(t *testing.T) {
	buf := []byte("POST http://example.test/ HTTP/1.1\r\nHost: example.test\r\n\r\n")
	r := Classify(buf, "localhost", "8080")

	assert.Equal(t, DecisionForward, r.Decision)
	assert.Equal(t, buf, r.Forwarded)
}

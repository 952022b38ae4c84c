package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/forwardproxy/internal/core/domain"
)

func TestParse_AbsoluteForm(t *testing.T) {
	req, err := Parse([]byte("GET http://example.test/foo HTTP/1.1\r\nHost: example.test\r\n\r\n"))
	require.NoError(t, err)

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "example.test", req.Host)
	assert.Equal(t, "80", req.Port)
	assert.Equal(t, "/foo", req.Path)
	assert.Equal(t, "HTTP/1.1", req.Version)
}

func TestParse_OriginFormWithHost(t *testing.T) {
	req, err := Parse([]byte("GET /foo HTTP/1.1\r\nHost: example.test:8081\r\n\r\n"))
	require.NoError(t, err)

	assert.Equal(t, "example.test", req.Host)
	assert.Equal(t, "8081", req.Port)
	assert.Equal(t, "/foo", req.Path)
}

func TestParse_OriginFormMissingHost(t *testing.T) {
	_, err := Parse([]byte("GET /foo HTTP/1.1\r\n\r\n"))
	require.Error(t, err)

	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindParseFailure, kind)
}

func TestParse_MalformedRequestLine(t *testing.T) {
	_, err := Parse([]byte("GET\r\n\r\n"))
	require.Error(t, err)

	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindParseFailure, kind)
}

func TestParse_ConnectDefaultPort(t *testing.T) {
	req, err := Parse([]byte("CONNECT example.test HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	assert.Equal(t, "example.test", req.Host)
	assert.Equal(t, "443", req.Port)
}

func TestParse_HeaderGetSet(t *testing.T) {
	req, err := Parse([]byte("GET http://example.test/ HTTP/1.1\r\nHost: example.test\r\nX-Test: one\r\n\r\n"))
	require.NoError(t, err)

	v, ok := req.Get("x-test")
	require.True(t, ok)
	assert.Equal(t, "one", v)

	req.Set("X-Test", "two")
	v, _ = req.Get("X-Test")
	assert.Equal(t, "two", v)

	req.Set("X-New", "three")
	v, ok = req.Get("x-new")
	require.True(t, ok)
	assert.Equal(t, "three", v)
}

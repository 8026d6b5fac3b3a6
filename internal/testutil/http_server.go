package testutil

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Transport tests need a loopback HTTP server. Binding is forced to IPv4
// because httptest's default listener picks IPv6 first, which some CI
// sandboxes do not provide.

// NewHTTPServer starts a loopback server for the handler, falling back to
// the httptest default when no tcp4 listener is available.
func NewHTTPServer(handler http.Handler) *httptest.Server {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return httptest.NewServer(handler)
	}
	return startServer(ln, handler)
}

// NewHTTPServerT is NewHTTPServer for tests: when no tcp4 listener can be
// bound the test is skipped instead of failing on environment trouble.
func NewHTTPServerT(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("tcp4 listener unavailable: %v", err)
		return nil
	}
	return startServer(ln, handler)
}

func startServer(ln net.Listener, handler http.Handler) *httptest.Server {
	srv := &httptest.Server{
		Listener: ln,
		Config:   &http.Server{Handler: handler},
	}
	srv.Start()
	return srv
}

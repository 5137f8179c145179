// Package snowtest provides a fake ServiceNow Table API for tests.
//
// Production code always talks https on the default port, so the fake server is
// a TLS httptest server and Client returns an *http.Client that dials it no
// matter which host:port the request names. Use Address as the account address:
// the httptest certificate is valid for example.com.
package snowtest

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// Address is the account address tests should hand to the code under test.
const Address = "https://example.com"

const userTablePath = "/api/now/table/sys_user"

// Request is a recorded call to the fake server.
type Request struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	ContentType   string
	UserAgent     string
	Body          []byte
}

// Response is a canned reply.
type Response struct {
	Status int
	Body   string
}

// Server is a fake ServiceNow instance.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	lookup   Response
	patch    Response
	requests []Request
}

// NewServer starts a fake instance that answers a lookup with sys_id "abc123"
// and a password update with the hash "HASH". It is closed when t finishes.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		lookup: Response{Status: http.StatusOK, Body: LookupBody("abc123")},
		patch:  Response{Status: http.StatusOK, Body: PasswordBody("HASH")},
	}
	s.Server = httptest.NewTLSServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// OnLookup sets the reply to GET /api/now/table/sys_user.
func (s *Server) OnLookup(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookup = Response{Status: status, Body: body}
}

// OnPatch sets the reply to PATCH /api/now/table/sys_user/{sys_id}.
func (s *Server) OnPatch(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patch = Response{Status: status, Body: body}
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Client returns an HTTP client that trusts the server certificate and routes
// every connection to the server.
func (s *Server) Client() *http.Client {
	transport := s.Server.Client().Transport.(*http.Transport).Clone()
	transport.DialContext = s.dialer()
	return &http.Client{Transport: transport}
}

// UntrustedClient routes to the server without trusting its certificate, so
// every call fails the TLS handshake.
func (s *Server) UntrustedClient() *http.Client {
	return &http.Client{Transport: &http.Transport{DialContext: s.dialer()}}
}

func (s *Server) dialer() func(ctx context.Context, network, addr string) (net.Conn, error) {
	target := s.Listener.Addr().String()
	return func(ctx context.Context, network, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, target)
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.Query(),
		Authorization: r.Header.Get("Authorization"),
		ContentType:   r.Header.Get("Content-Type"),
		UserAgent:     r.Header.Get("User-Agent"),
		Body:          body,
	})
	var reply Response
	switch {
	case r.Method == http.MethodGet && r.URL.Path == userTablePath:
		reply = s.lookup
	case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, userTablePath+"/"):
		reply = s.patch
	default:
		reply = Response{Status: http.StatusNotFound, Body: `{"error":{"message":"No such resource"}}`}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.Status)
	_, _ = io.WriteString(w, reply.Body)
}

// LookupBody renders a lookup reply for sysID.
func LookupBody(sysID string) string {
	return `{"result":[{"sys_id":"` + sysID + `"}]}`
}

// PasswordBody renders a password update reply echoing hash.
func PasswordBody(hash string) string {
	return `{"result":{"user_password":"` + hash + `"}}`
}

// Closed returns a client whose connections go to a port nobody listens on, for
// connect-failure tests.
func Closed(t testing.TB) *http.Client {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	target := l.Addr().String()
	_ = l.Close()

	return &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, target)
		},
	}}
}

// FailingTransport returns a client whose every round trip fails with err.
func FailingTransport(err error) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, err
	})}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// DebugRequest builds a request from a loopback address. tsweb only serves
// /debug/ routes to loopback and tailnet peers.
func DebugRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

// ServeDebug sends a DebugRequest through h and returns the recorded
// response.
func ServeDebug(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, DebugRequest(method, target, nil))
	return w
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

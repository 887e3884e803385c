package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type testHandler struct {
	method string
	err    error
}

func (h *testHandler) Handle(_ context.Context, method string, params json.RawMessage) (any, error) {
	h.method = method
	if h.err != nil {
		return nil, h.err
	}
	return map[string]string{"method": method}, nil
}

func postRPC(t *testing.T, url, token, body string) (*http.Response, Response) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/rpc", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var out Response
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHTTPServer_RPC(t *testing.T) {
	handler := &testHandler{}
	resolver := &testResolver{tokenToClient: map[string]string{"token": "client1"}}
	server := httptest.NewServer(NewServer(handler, AuthMiddleware(resolver), nil))
	t.Cleanup(server.Close)

	resp, out := postRPC(t, server.URL, "token", `{"jsonrpc":"2.0","method":"getBalance","id":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	require.Nil(t, out.Error)
	require.JSONEq(t, `{"method":"getBalance"}`, string(out.Result))
	require.Equal(t, "getBalance", handler.method)

	resp, _ = postRPC(t, server.URL, "", `{"jsonrpc":"2.0","method":"getBalance","id":1}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTPServer_Errors(t *testing.T) {
	handler := &testHandler{}
	server := httptest.NewServer(NewServer(handler, nil, nil))
	t.Cleanup(server.Close)

	_, out := postRPC(t, server.URL, "", `{not json`)
	require.Equal(t, ErrParseCode, out.Error.Code)

	_, out = postRPC(t, server.URL, "", `{"jsonrpc":"1.0","method":"x","id":1}`)
	require.Equal(t, ErrInvalidReq, out.Error.Code)

	handler.err = &Error{Code: ErrMethodNotFound, Message: "method not found: nope"}
	_, out = postRPC(t, server.URL, "", `{"jsonrpc":"2.0","method":"nope","id":2}`)
	require.Equal(t, ErrMethodNotFound, out.Error.Code)
	require.EqualValues(t, 2, out.ID)

	handler.err = errors.New("disk on fire")
	_, out = postRPC(t, server.URL, "", `{"jsonrpc":"2.0","method":"getBalance","id":3}`)
	require.Equal(t, ErrInternal, out.Error.Code)
	require.Equal(t, "disk on fire", out.Error.Message)
}

func TestHTTPServer_Health(t *testing.T) {
	handler := &testHandler{}
	resolver := &testResolver{err: ErrUnauthorized}
	server := httptest.NewServer(NewServer(handler, AuthMiddleware(resolver), nil))
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDMiddleware_KeepsCallerID(t *testing.T) {
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := RequestIDFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, "req-42", id)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
}

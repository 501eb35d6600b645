package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/procreport/pkg/errors"
)

func TestClientGet(t *testing.T) {
	t.Run("success sets headers", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			assert.Equal(t, "procreport-test", r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte(`{"processes":[]}`))
		}))
		defer server.Close()

		c := New(WithUserAgent("procreport-test"))
		body, err := c.Get(context.Background(), server.URL)
		require.NoError(t, err)
		assert.JSONEq(t, `{"processes":[]}`, string(body))
	})

	t.Run("non-2xx becomes APIError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(strings.Repeat("x", 2*maxErrorMessage)))
		}))
		defer server.Close()

		_, err := New().Get(context.Background(), server.URL)
		var apiErr *errors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
		assert.Equal(t, server.URL, apiErr.Endpoint)
		assert.LessOrEqual(t, len(apiErr.Message), maxErrorMessage+3)
		assert.True(t, errors.IsTransport(err))
		assert.True(t, errors.IsProviderUnavailable(err))
	})

	t.Run("connection refused becomes TransportError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := server.URL
		server.Close()

		_, err := New().Get(context.Background(), url)
		var tErr *errors.TransportError
		require.ErrorAs(t, err, &tErr)
		assert.True(t, errors.IsTransport(err))
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		c := New(WithTimeout(50 * time.Millisecond))
		assert.Equal(t, 50*time.Millisecond, c.Timeout())

		_, err := c.Get(context.Background(), server.URL)
		require.Error(t, err)
		assert.True(t, errors.IsTransport(err))
		assert.True(t, errors.IsTimeout(err))
	})

	t.Run("oversized body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("a", 64)))
		}))
		defer server.Close()

		_, err := New(WithMaxBytes(16)).Get(context.Background(), server.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds 16 bytes")
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := New().Get(context.Background(), "://bad")
		assert.True(t, errors.IsTransport(err))
	})
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Processes []map[string]any `json:"processes"`
	}
	require.NoError(t, DecodeJSON([]byte(`{"processes":[{"id":"a"}]}`), "aggregator", &v))
	assert.Len(t, v.Processes, 1)

	err := DecodeJSON([]byte(`{"processes":`), "aggregator", &v)
	var parseErr *errors.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "aggregator", parseErr.File)
}

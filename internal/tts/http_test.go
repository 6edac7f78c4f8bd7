package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProviderSynthesize(t *testing.T) {
	received := make(chan httpRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, synthesizePath, r.URL.Path)
		assert.Equal(t, "audio/mpeg", r.Header.Get("Accept"))
		var req httpRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		received <- req
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 5*time.Second)
	audio, err := p.Synthesize(context.Background(), "Hello there.", Options{Lang: "en-GB", Slow: true})
	require.NoError(t, err)

	assert.Equal(t, []byte("ID3audio"), audio)
	assert.Equal(t, httpRequest{Text: "Hello there.", Lang: "en-GB", Slow: true}, <-received)
}

func TestHTTPProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":"quota exceeded","error_code":"rate_limited"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 5*time.Second)
	_, err := p.Synthesize(context.Background(), "Hello.", Options{Lang: "en"})
	require.Error(t, err)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	assert.Equal(t, "quota exceeded (code: rate_limited)", perr.Message)
}

func TestHTTPProviderPlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL, time.Second).Synthesize(context.Background(), "Hi.", Options{})
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "upstream down", perr.Message)
}

func TestHTTPProviderHostOption(t *testing.T) {
	var hit atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hit.Store(true)
		_, _ = w.Write([]byte("audio"))
	}))
	defer srv.Close()

	p := NewHTTPProvider("http://127.0.0.1:1", time.Second)
	_, err := p.Synthesize(context.Background(), "Hi.", Options{Host: srv.URL})
	require.NoError(t, err)
	assert.True(t, hit.Load())
}

func TestHTTPProviderEmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL, time.Second).Synthesize(context.Background(), "Hi.", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty audio")
}

func TestHTTPProviderRejectsEmptyText(t *testing.T) {
	_, err := NewHTTPProvider("http://localhost", time.Second).Synthesize(context.Background(), "  ", Options{})
	require.Error(t, err)
}

func TestHTTPProviderHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, NewHTTPProvider(srv.URL, time.Second).HealthCheck(context.Background()))
	require.Error(t, NewHTTPProvider("", time.Second).HealthCheck(context.Background()))
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "https://tts.example.com", endpoint("tts.example.com/"))
	assert.Equal(t, "http://localhost:8000", endpoint("http://localhost:8000"))
}

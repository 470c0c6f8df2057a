package verifyapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/webcontrol/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	c := NewClient()
	c.SetRetry(3, time.Millisecond)
	c.MaxRetryDelay = 4 * time.Millisecond
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

func endpoint(url, method string) types.EndpointConfig {
	return types.EndpointConfig{URL: url, Method: method}
}

func TestEnrollPublicKey_DefaultBody(t *testing.T) {
	var gotBody map[string]string
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"message":"enrolled","userId":42}`)
	}))
	defer srv.Close()

	cfg := endpoint(srv.URL+"/enroll", "post")
	cfg.Headers = map[string]string{"X-Api-Key": "secret"}

	res, err := newTestClient().EnrollPublicKey(context.Background(), cfg, "PUBKEY")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "enrolled", res.Message)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"success":true,"message":"enrolled","userId":42}`, string(res.Data))
	assert.Equal(t, map[string]string{"publicKey": "PUBKEY"}, gotBody)
	assert.Equal(t, "secret", gotHeaders.Get("X-Api-Key"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
}

func TestValidateSignature_CustomTemplate(t *testing.T) {
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	cfg := endpoint(srv.URL, "PUT")
	cfg.CustomPayload = `{"msg":"{{payload}}","sig":"{{signature}}","at":{{timestamp}},"pk":"{{publicKey}}"}`

	res, err := newTestClient().ValidateSignature(context.Background(), cfg, `say "hi"`, "SIG")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "ok", res.Message)
	assert.Nil(t, res.Data)
	assert.JSONEq(t, `{"msg":"say \"hi\"","sig":"SIG","at":1700000000,"pk":""}`, string(raw))
}

func TestValidateSignature_GetUsesQuery(t *testing.T) {
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		assert.Equal(t, http.MethodGet, r.Method)
	}))
	defer srv.Close()

	_, err := newTestClient().ValidateSignature(context.Background(), endpoint(srv.URL+"/v?x=1", "GET"), "p", "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"p"}, query["payload"])
	assert.Equal(t, []string{"s"}, query["signature"])
	assert.Equal(t, []string{"1"}, query["x"])
}

func TestCall_SuccessFalseInBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"message":"signature mismatch"}`)
	}))
	defer srv.Close()

	res, err := newTestClient().ValidateSignature(context.Background(), endpoint(srv.URL, "POST"), "p", "s")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "signature mismatch", res.Message)
}

func TestCall_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	res, err := newTestClient().EnrollPublicKey(context.Background(), endpoint(srv.URL, "POST"), "k")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCall_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient().EnrollPublicKey(context.Background(), endpoint(srv.URL, "POST"), "k")
	require.Error(t, err)
	assert.True(t, IsType(err, ErrTypeHTTP))
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestCall_DoesNotRetryClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorType
	}{
		{"bad request", http.StatusBadRequest, ErrTypeHTTP},
		{"unauthorized", http.StatusUnauthorized, ErrTypeAuth},
		{"forbidden", http.StatusForbidden, ErrTypeAuth},
		{"not found", http.StatusNotFound, ErrTypeHTTP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":"nope"}`)
			}))
			defer srv.Close()

			_, err := newTestClient().EnrollPublicKey(context.Background(), endpoint(srv.URL, "POST"), "k")
			require.Error(t, err)
			assert.True(t, IsType(err, tt.want), "error = %v", err)
			assert.False(t, IsRetryable(err))
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, "nope", apiErr.Message)
		})
	}
}

func TestCall_InvalidConfig(t *testing.T) {
	_, err := newTestClient().EnrollPublicKey(context.Background(), endpoint("ftp://x", "POST"), "k")
	assert.True(t, IsType(err, ErrTypeValidation))
}

func TestCall_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":`)
	}))
	defer srv.Close()

	_, err := newTestClient().EnrollPublicKey(context.Background(), endpoint(srv.URL, "POST"), "k")
	assert.True(t, IsType(err, ErrTypeParse))
}

func TestCall_ConnectionRefusedIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient().EnrollPublicKey(context.Background(), endpoint(url, "POST"), "k")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestCall_ContextCanceledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient()
	c.SetRetry(3, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := c.EnrollPublicKey(ctx, endpoint(srv.URL, "POST"), "k")
	assert.True(t, IsType(err, ErrTypeCanceled), "error = %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

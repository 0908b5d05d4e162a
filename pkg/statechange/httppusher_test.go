package statechange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coremail/engine/pkg/ids"
	"github.com/stretchr/testify/require"
)

func TestHTTPPusherPostsCoalescedWindow(t *testing.T) {
	var gotBody wirePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sc := StateChange{1: {ids.TypeStateEmail: 42}}
	p := NewHTTPPusher()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Push(ctx, srv.URL, sc))

	require.Equal(t, "StateChange", gotBody.Type)
	require.Contains(t, gotBody.Changed, "1")
	require.Contains(t, gotBody.Changed["1"], "Email")
}

func TestHTTPPusherPostsVerification(t *testing.T) {
	var gotBody wireVerification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewHTTPPusher()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.PushVerification(ctx, srv.URL, Verification{SubscriptionID: 7, Code: "secret-code"}))

	require.Equal(t, "PushVerification", gotBody.Type)
	require.Equal(t, "7", gotBody.PushSubscriptionID)
	require.Equal(t, "secret-code", gotBody.VerificationCode)
}

func TestHTTPPusherErrorsOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPPusher()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := p.Push(ctx, srv.URL, StateChange{1: {ids.TypeStateEmail: 1}})
	require.Error(t, err)
}

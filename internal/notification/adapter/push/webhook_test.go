package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"deliveryhub/internal/notification/app/core"
	"deliveryhub/internal/xpkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhook_Push(t *testing.T) {
	var got events.Alert
	var alertID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		alertID = r.Header.Get("X-Alert-Id")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	a := events.Alert{ID: "a-1", Recipient: "user:u-1", Event: "order_ready", Title: "Order ready", Push: true}
	require.NoError(t, NewWebhook(srv.URL, time.Second).Push(context.Background(), a))
	assert.Equal(t, "a-1", alertID)
	assert.Equal(t, "user:u-1", got.Recipient)
	assert.Equal(t, "Order ready", got.Title)
}

func TestWebhook_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, time.Second).Push(context.Background(), events.Alert{ID: "a-2"})
	assert.ErrorIs(t, err, core.ErrPush)
}

func TestWebhook_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, 50*time.Millisecond).Push(context.Background(), events.Alert{ID: "a-3"})
	assert.ErrorIs(t, err, core.ErrPush)
}

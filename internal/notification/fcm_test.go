package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFCMClient_Send(t *testing.T) {
	var got fcmMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key=server-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":1,"failure":0,"results":[{"message_id":"m1"}]}`))
	}))
	defer srv.Close()

	client := NewFCMClient(srv.URL, "server-key", time.Second, nil, zap.NewNop())
	err := client.Send(context.Background(), "device-token", "Health Alert - Toby", "Fever: temperature 40.1°C is above 39.5°C")
	require.NoError(t, err)

	assert.Equal(t, "device-token", got.To)
	assert.Equal(t, "high", got.Priority)
	assert.Equal(t, "Health Alert - Toby", got.Notification.Title)
}

func TestFCMClient_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":0,"failure":1,"results":[{"error":"NotRegistered"}]}`))
	}))
	defer srv.Close()

	client := NewFCMClient(srv.URL, "k", time.Second, nil, zap.NewNop())
	err := client.Send(context.Background(), "stale", "t", "b")
	assert.ErrorContains(t, err, "NotRegistered")
}

func TestFCMClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewFCMClient(srv.URL, "bad", time.Second, nil, zap.NewNop())
	assert.ErrorContains(t, client.Send(context.Background(), "tok", "t", "b"), "status 401")
}

func TestFCMClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewFCMClient(srv.URL, "k", 50*time.Millisecond, nil, zap.NewNop())
	start := time.Now()
	assert.Error(t, client.Send(context.Background(), "tok", "t", "b"))
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestLogGateway(t *testing.T) {
	assert.NoError(t, LogGateway{Logger: zap.NewNop()}.Send(context.Background(), "tok", "t", "b"))
}

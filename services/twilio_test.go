package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTwilioClient_Send(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "token", pass)

		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "+15550001", r.PostForm.Get("To"))
		assert.Equal(t, "+15559999", r.PostForm.Get("From"))
		assert.Equal(t, "hello", r.PostForm.Get("Body"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SMabc","status":"queued"}`))
	}))
	defer server.Close()

	client := NewTwilioClient(server.URL, "AC123", "token", "+15559999", 5*time.Second, zap.NewNop())
	assert.Equal(t, "+15559999", client.From())

	sid, err := client.Send(context.Background(), "+15550001", "hello")
	require.NoError(t, err)
	assert.Equal(t, "SMabc", sid)
	assert.Equal(t, 1, calls)
}

func TestTwilioClient_ErrorIsNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"The 'To' number is not a valid phone number.","status":400}`))
	}))
	defer server.Close()

	client := NewTwilioClient(server.URL, "AC123", "token", "+15559999", 5*time.Second, zap.NewNop())
	_, err := client.Send(context.Background(), "bogus", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid phone number")
	assert.Equal(t, 1, calls)
}

func TestTwilioClient_TimeoutReportedThroughNotifier(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewTwilioClient(server.URL, "AC123", "token", "+15559999", 5*time.Second, zap.NewNop())
	notifier := NewAlertNotifier(client, 50*time.Millisecond, zap.NewNop())

	out := notifier.Notify(context.Background(), testPerson("Jane", "+15550001"), 60, nil, nil)
	assert.Equal(t, "failed", string(out.Status))
	assert.NotEmpty(t, out.Reason)
}

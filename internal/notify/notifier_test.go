package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	mu    sync.Mutex
	name  string
	calls int
	err   error
}

func (s *stubSender) Send(context.Context, string, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *stubSender) Name() string { return s.name }

func TestNotifyFiltersEvents(t *testing.T) {
	sender := &stubSender{name: "stub"}
	n := New([]Sender{sender}, []string{"position_closed"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, n.Notify(context.Background(), "position_opened", "t", "m"))
	assert.Equal(t, 0, sender.calls, "unsubscribed event must not reach the sender")

	require.NoError(t, n.Notify(context.Background(), "position_closed", "t", "m"))
	assert.Equal(t, 1, sender.calls)
}

func TestNotifyEmptyFilterAdmitsEverything(t *testing.T) {
	sender := &stubSender{name: "stub"}
	n := New([]Sender{sender}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, n.Notify(context.Background(), "anything", "t", "m"))
	assert.Equal(t, 1, sender.calls)
}

func TestNotifyOneDeadSenderDoesNotBlockOthers(t *testing.T) {
	dead := &stubSender{name: "dead", err: errors.New("boom")}
	alive := &stubSender{name: "alive"}
	n := New([]Sender{dead, alive}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := n.Notify(context.Background(), "error", "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dead")
	assert.Equal(t, 1, alive.calls, "healthy sender still delivers")
}

func TestTelegramSenderPostsToChat(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = buf
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "chat-42")
	s.apiBase = srv.URL

	require.NoError(t, s.Send(context.Background(), "Title", "body"))
	assert.Equal(t, "/bottok/sendMessage", gotPath)
	assert.Contains(t, string(gotBody), `"chat_id":"chat-42"`)
	assert.Contains(t, string(gotBody), "*Title*")
}

func TestDiscordSenderSurfacesHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	err := s.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

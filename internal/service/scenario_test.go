package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zawix/messages/internal/domain"
	"github.com/zawix/messages/internal/notify"
	"github.com/zawix/messages/internal/repository"
	"github.com/zawix/messages/internal/store/memstore"
)

type recordingSink struct {
	ch chan notify.Notification
}

func (s *recordingSink) Deliver(username string, n notify.Notification) {
	s.ch <- n
}

// Full flow: two users register, become friends, exchange messages, and
// the recipient's watcher raises exactly the expected notifications.
func TestMessagingScenario(t *testing.T) {
	ctx := context.Background()

	st := memstore.New()
	defer st.Close()

	userRepo := repository.NewUserRepo(st)
	messageRepo := repository.NewMessageRepo(st)
	friendRepo := repository.NewFriendRepo(st)

	authSvc := NewAuthService(userRepo, messageRepo, friendRepo, "scenario-secret")
	friendSvc := NewFriendService(friendRepo, userRepo)
	messageSvc := NewMessageService(messageRepo, userRepo, friendSvc, true)

	_, err := authSvc.Register(ctx, "alice", "password123")
	require.NoError(t, err)
	_, err = authSvc.Register(ctx, "bob", "password123")
	require.NoError(t, err)

	// Messaging is gated until the request is accepted.
	_, err = messageSvc.Send(ctx, "alice", "bob", "premature")
	require.ErrorIs(t, err, ErrNotFriends)

	req, err := friendSvc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = friendSvc.AcceptRequest(ctx, "bob", req.ID)
	require.NoError(t, err)

	// Bob comes online.
	sink := &recordingSink{ch: make(chan notify.Notification, 8)}
	watcher := notify.NewWatcher(st, sink, "bob", false)

	snapshots := make(chan []domain.Message, 8)
	watcher.OnSnapshot(func(msgs []domain.Message) { snapshots <- msgs })

	watcher.Start(ctx)
	defer watcher.Stop()

	// The first snapshot is the baseline; nothing is delivered for it.
	select {
	case <-snapshots:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for baseline snapshot")
	}

	long := "this opening line is deliberately much longer than fifty characters"
	_, err = messageSvc.Send(ctx, "alice", "bob", long)
	require.NoError(t, err)

	select {
	case n := <-sink.ch:
		assert.Equal(t, "alice", n.From)
		assert.Equal(t, notify.Truncate(long), n.Body)
		assert.True(t, strings.HasSuffix(n.Body, "..."))
	case <-time.After(2 * time.Second):
		t.Fatal("bob was not notified")
	}

	// Bob replies; his own message must not notify him.
	_, err = messageSvc.Send(ctx, "bob", "alice", "hello back")
	require.NoError(t, err)

	select {
	case n := <-sink.ch:
		t.Fatalf("unexpected notification for own reply: %+v", n)
	case <-time.After(200 * time.Millisecond):
	}

	msgs, err := messageSvc.Conversation(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, long, msgs[0].Message)
	assert.Equal(t, "hello back", msgs[1].Message)
}

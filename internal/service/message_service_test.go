package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zawix/messages/internal/domain"
	"github.com/zawix/messages/internal/repository"
	"github.com/zawix/messages/internal/store/memstore"
)

func newMessageFixture(t *testing.T, friendsOnly bool, usernames ...string) (*MessageService, *FriendService) {
	t.Helper()

	st := memstore.New()
	t.Cleanup(st.Close)

	userRepo := repository.NewUserRepo(st)
	messageRepo := repository.NewMessageRepo(st)
	friendRepo := repository.NewFriendRepo(st)

	ctx := context.Background()
	for _, name := range usernames {
		require.NoError(t, userRepo.Create(ctx, &domain.User{
			Username:     name,
			PasswordHash: "x",
			CreatedAt:    time.Now().UnixMilli(),
		}))
	}

	friendSvc := NewFriendService(friendRepo, userRepo)
	return NewMessageService(messageRepo, userRepo, friendSvc, friendsOnly), friendSvc
}

func makeFriends(t *testing.T, svc *FriendService, a, b string) {
	t.Helper()
	ctx := context.Background()
	req, err := svc.SendRequest(ctx, a, b)
	require.NoError(t, err)
	_, err = svc.AcceptRequest(ctx, b, req.ID)
	require.NoError(t, err)
}

func TestMessageService_SendRequiresFriendship(t *testing.T) {
	ctx := context.Background()
	svc, friendSvc := newMessageFixture(t, true, "alice", "bob")

	_, err := svc.Send(ctx, "alice", "bob", "hello?")
	assert.ErrorIs(t, err, ErrNotFriends)

	makeFriends(t, friendSvc, "alice", "bob")

	msg, err := svc.Send(ctx, "alice", "bob", "hello!")
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.From)
	assert.Equal(t, "bob", msg.To)
	assert.False(t, msg.Edited)
}

func TestMessageService_SendWithoutGating(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMessageFixture(t, false, "alice", "bob")

	_, err := svc.Send(ctx, "alice", "bob", "open mode")
	assert.NoError(t, err)
}

func TestMessageService_SendValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMessageFixture(t, false, "alice", "bob")

	_, err := svc.Send(ctx, "alice", "bob", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.Send(ctx, "alice", "ghost", "anyone there?")
	assert.ErrorIs(t, err, ErrRecipientUnknown)
}

func TestMessageService_Conversation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMessageFixture(t, false, "alice", "bob", "carol")

	_, err := svc.Send(ctx, "alice", "bob", "one")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "bob", "alice", "two")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "alice", "carol", "unrelated")
	require.NoError(t, err)

	msgs, err := svc.Conversation(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Message)
	assert.Equal(t, "two", msgs[1].Message)

	empty, err := svc.Conversation(ctx, "bob", "carol")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMessageService_EditOwnerOnly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMessageFixture(t, false, "alice", "bob")

	msg, err := svc.Send(ctx, "alice", "bob", "typo")
	require.NoError(t, err)

	_, err = svc.Edit(ctx, "bob", msg.ID, "hijacked")
	assert.ErrorIs(t, err, ErrNotMessageOwner)

	edited, err := svc.Edit(ctx, "alice", msg.ID, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", edited.Message)
	assert.True(t, edited.Edited)

	msgs, err := svc.Conversation(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "fixed", msgs[0].Message)
	assert.True(t, msgs[0].Edited)
}

func TestMessageService_EditMissing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMessageFixture(t, false, "alice")

	_, err := svc.Edit(ctx, "alice", uuid.New(), "text")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessageService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMessageFixture(t, false, "alice", "bob")

	msg, err := svc.Send(ctx, "alice", "bob", "going away")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "bob", msg.ID), ErrNotMessageOwner)

	require.NoError(t, svc.Delete(ctx, "alice", msg.ID))

	msgs, err := svc.Conversation(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	// Retrying the delete is a success, not an error.
	assert.NoError(t, svc.Delete(ctx, "alice", msg.ID))
	assert.NoError(t, svc.Delete(ctx, "alice", uuid.New()))
}

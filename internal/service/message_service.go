package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zawix/messages/internal/domain"
	"github.com/zawix/messages/internal/repository"
)

var (
	ErrEmptyMessage     = errors.New("message cannot be empty")
	ErrRecipientUnknown = errors.New("recipient not found")
	ErrNotFriends       = errors.New("you can only message friends")
	ErrMessageNotFound  = errors.New("message not found")
	ErrNotMessageOwner  = errors.New("you can only modify your own messages")
)

type MessageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	friends     *FriendService
	friendsOnly bool
}

func NewMessageService(messageRepo repository.MessageRepository, userRepo repository.UserRepository, friends *FriendService, friendsOnly bool) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		friends:     friends,
		friendsOnly: friendsOnly,
	}
}

// Send stores a direct message from sender to recipient. When the service
// runs with friendsOnly enabled, the pair must have a friendship document.
func (s *MessageService) Send(ctx context.Context, sender, recipient, text string) (*domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	target, err := s.userRepo.GetByUsername(ctx, recipient)
	if err != nil {
		return nil, fmt.Errorf("looking up recipient: %w", err)
	}
	if target == nil {
		return nil, ErrRecipientUnknown
	}

	if s.friendsOnly && sender != recipient {
		ok, err := s.friends.AreFriends(ctx, sender, recipient)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNotFriends
		}
	}

	msg := &domain.Message{
		From:      sender,
		To:        recipient,
		Message:   text,
		Timestamp: time.Now().UnixMilli(),
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("storing message: %w", err)
	}

	return msg, nil
}

// Conversation returns all messages between the two users, oldest first.
func (s *MessageService) Conversation(ctx context.Context, username, other string) ([]domain.Message, error) {
	msgs, err := s.messageRepo.ListBetween(ctx, username, other)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

// Edit replaces the text of a message the user sent and marks it edited.
func (s *MessageService) Edit(ctx context.Context, username string, messageID uuid.UUID, text string) (*domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.From != username {
		return nil, ErrNotMessageOwner
	}

	if err := s.messageRepo.UpdateText(ctx, messageID, text); err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}

	msg.Message = text
	msg.Edited = true
	return msg, nil
}

// Delete removes a message the user sent. Deleting a message that no
// longer exists succeeds, so retried deletes stay idempotent.
func (s *MessageService) Delete(ctx context.Context, username string, messageID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}
	if msg.From != username {
		return ErrNotMessageOwner
	}

	return s.messageRepo.Delete(ctx, messageID)
}

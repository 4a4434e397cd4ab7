package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/zawix/messages/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListBetween(ctx context.Context, a, b string) ([]domain.Message, error)
	UpdateText(ctx context.Context, id uuid.UUID, text string) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAllInvolving(ctx context.Context, username string) error
}

type FriendRepository interface {
	CreateRequest(ctx context.Context, req *domain.FriendRequest) error
	GetRequestByID(ctx context.Context, id uuid.UUID) (*domain.FriendRequest, error)
	ListRequestsBetween(ctx context.Context, a, b string) ([]domain.FriendRequest, error)
	ListIncomingRequests(ctx context.Context, username string) ([]domain.FriendRequest, error)
	ListOutgoingRequests(ctx context.Context, username string) ([]domain.FriendRequest, error)
	ListAllRequests(ctx context.Context) ([]domain.FriendRequest, error)
	DeleteRequest(ctx context.Context, id uuid.UUID) error
	CreateFriendship(ctx context.Context, fs *domain.Friendship) error
	ListFriendships(ctx context.Context, username string) ([]domain.Friendship, error)
	ListAllFriendships(ctx context.Context) ([]domain.Friendship, error)
	DeleteFriendship(ctx context.Context, id uuid.UUID) error
}

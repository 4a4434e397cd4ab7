package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zawix/messages/internal/domain"
	"github.com/zawix/messages/internal/repository"
	"golang.org/x/crypto/argon2"
)

var (
	ErrUsernameTaken = errors.New("username already taken")
	ErrInvalidCreds  = errors.New("invalid username or password")
	ErrSamePassword  = errors.New("new password must differ from the old one")
)

type AuthService struct {
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	friendRepo  repository.FriendRepository
	jwtSecret   []byte
}

func NewAuthService(userRepo repository.UserRepository, messageRepo repository.MessageRepository, friendRepo repository.FriendRepository, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		messageRepo: messageRepo,
		friendRepo:  friendRepo,
		jwtSecret:   []byte(jwtSecret),
	}
}

type AuthResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UnixMilli(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return user, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCreds
	}

	if !verifyPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCreds
	}

	token, err := s.generateToken(user.Username)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	return &AuthResponse{User: user, AccessToken: token}, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user == nil || !verifyPassword(oldPassword, user.PasswordHash) {
		return ErrInvalidCreds
	}

	if newPassword == oldPassword {
		return ErrSamePassword
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	return s.userRepo.UpdatePassword(ctx, user.ID, hash)
}

// DeleteAccount removes the user and cascades: every message sent or
// received by the user, and every friendship and pending request the user
// is part of.
func (s *AuthService) DeleteAccount(ctx context.Context, username, password string) error {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user == nil || !verifyPassword(password, user.PasswordHash) {
		return ErrInvalidCreds
	}

	if err := s.userRepo.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	if err := s.messageRepo.DeleteAllInvolving(ctx, username); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}

	friendships, err := s.friendRepo.ListFriendships(ctx, username)
	if err != nil {
		return err
	}
	for _, fs := range friendships {
		if err := s.friendRepo.DeleteFriendship(ctx, fs.ID); err != nil {
			return fmt.Errorf("deleting friendship: %w", err)
		}
	}

	incoming, err := s.friendRepo.ListIncomingRequests(ctx, username)
	if err != nil {
		return err
	}
	outgoing, err := s.friendRepo.ListOutgoingRequests(ctx, username)
	if err != nil {
		return err
	}
	for _, req := range append(incoming, outgoing...) {
		if err := s.friendRepo.DeleteRequest(ctx, req.ID); err != nil {
			return fmt.Errorf("deleting friend request: %w", err)
		}
	}

	return nil
}

// ListUsers returns every user except the caller, for the contact sidebar.
func (s *AuthService) ListUsers(ctx context.Context, exceptUsername string) ([]domain.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	others := make([]domain.User, 0, len(users))
	for _, u := range users {
		if u.Username != exceptUsername {
			others = append(others, u)
		}
	}
	return others, nil
}

func (s *AuthService) generateToken(username string) (string, error) {
	claims := jwt.MapClaims{
		"sub": username,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	return fmt.Sprintf("%s:%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyPassword(password, encoded string) bool {
	saltB64, hashB64, ok := strings.Cut(encoded, ":")
	if !ok {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(hashB64)
	if err != nil {
		return false
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return subtle.ConstantTimeCompare(hash, expectedHash) == 1
}

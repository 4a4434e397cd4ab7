package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zawix/messages/internal/domain"
	"github.com/zawix/messages/internal/repository"
)

var (
	ErrSelfTarget         = errors.New("cannot send a friend request to yourself")
	ErrTargetNotFound     = errors.New("user not found")
	ErrAlreadyFriends     = errors.New("you are already friends")
	ErrRequestPending     = errors.New("a pending request already exists")
	ErrRequestNotFound    = errors.New("friend request not found")
	ErrNotRequestReceiver = errors.New("only the request receiver can perform this action")
	ErrNotRequestSender   = errors.New("only the request sender can cancel")
)

// CanSendFriendRequest decides whether requester may send a friend request
// to target, given the current users, friendships and pending requests.
// Checks run in a fixed order and the first failure wins. The function does
// no I/O; callers supply the (possibly pre-filtered) snapshots.
func CanSendFriendRequest(requester, target string, users []domain.User, friendships []domain.Friendship, pending []domain.FriendRequest) error {
	if requester == target {
		return ErrSelfTarget
	}

	found := false
	for _, u := range users {
		if u.Username == target {
			found = true
			break
		}
	}
	if !found {
		return ErrTargetNotFound
	}

	for _, fs := range friendships {
		if fs.Contains(requester) && fs.Contains(target) {
			return ErrAlreadyFriends
		}
	}

	for _, req := range pending {
		if (req.From == requester && req.To == target) ||
			(req.From == target && req.To == requester) {
			return ErrRequestPending
		}
	}

	return nil
}

type FriendService struct {
	friendRepo repository.FriendRepository
	userRepo   repository.UserRepository
}

func NewFriendService(friendRepo repository.FriendRepository, userRepo repository.UserRepository) *FriendService {
	return &FriendService{
		friendRepo: friendRepo,
		userRepo:   userRepo,
	}
}

// SendRequest validates and persists a friend request from requester to the
// target username. Validation uses filtered store queries rather than
// whole-collection scans, but keeps the same evaluation order.
func (s *FriendService) SendRequest(ctx context.Context, requester, target string) (*domain.FriendRequest, error) {
	var users []domain.User
	targetUser, err := s.userRepo.GetByUsername(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if targetUser != nil {
		users = append(users, *targetUser)
	}

	friendships, err := s.friendRepo.ListFriendships(ctx, requester)
	if err != nil {
		return nil, err
	}

	pending, err := s.friendRepo.ListRequestsBetween(ctx, requester, target)
	if err != nil {
		return nil, err
	}

	if err := CanSendFriendRequest(requester, target, users, friendships, pending); err != nil {
		return nil, err
	}

	req := &domain.FriendRequest{
		From:      requester,
		To:        target,
		Timestamp: time.Now().UnixMilli(),
	}

	if err := s.friendRepo.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("creating friend request: %w", err)
	}

	return req, nil
}

// AcceptRequest converts a pending request into a friendship. The two
// writes are not atomic; Reconcile heals the gap if one of them is lost.
func (s *FriendService) AcceptRequest(ctx context.Context, username string, requestID uuid.UUID) (*domain.Friendship, error) {
	req, err := s.friendRepo.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	if req.To != username {
		return nil, ErrNotRequestReceiver
	}

	fs := &domain.Friendship{
		Users:     []string{req.From, req.To},
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.friendRepo.CreateFriendship(ctx, fs); err != nil {
		return nil, fmt.Errorf("creating friendship: %w", err)
	}

	if err := s.friendRepo.DeleteRequest(ctx, requestID); err != nil {
		return nil, fmt.Errorf("deleting friend request: %w", err)
	}

	return fs, nil
}

// RejectRequest deletes a pending request addressed to username.
func (s *FriendService) RejectRequest(ctx context.Context, username string, requestID uuid.UUID) error {
	req, err := s.friendRepo.GetRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrRequestNotFound
	}
	if req.To != username {
		return ErrNotRequestReceiver
	}

	return s.friendRepo.DeleteRequest(ctx, requestID)
}

// CancelRequest deletes a pending request sent by username.
func (s *FriendService) CancelRequest(ctx context.Context, username string, requestID uuid.UUID) error {
	req, err := s.friendRepo.GetRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrRequestNotFound
	}
	if req.From != username {
		return ErrNotRequestSender
	}

	return s.friendRepo.DeleteRequest(ctx, requestID)
}

// ListFriends returns the user's friendships with Other filled in.
func (s *FriendService) ListFriends(ctx context.Context, username string) ([]domain.Friendship, error) {
	fss, err := s.friendRepo.ListFriendships(ctx, username)
	if err != nil {
		return nil, err
	}
	if fss == nil {
		fss = []domain.Friendship{}
	}

	for i := range fss {
		for _, u := range fss[i].Users {
			if u != username {
				fss[i].Other = u
				break
			}
		}
	}
	return fss, nil
}

func (s *FriendService) ListIncomingRequests(ctx context.Context, username string) ([]domain.FriendRequest, error) {
	reqs, err := s.friendRepo.ListIncomingRequests(ctx, username)
	if err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []domain.FriendRequest{}
	}
	return reqs, nil
}

func (s *FriendService) ListOutgoingRequests(ctx context.Context, username string) ([]domain.FriendRequest, error) {
	reqs, err := s.friendRepo.ListOutgoingRequests(ctx, username)
	if err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []domain.FriendRequest{}
	}
	return reqs, nil
}

// RemoveFriend deletes every friendship document for the pair.
func (s *FriendService) RemoveFriend(ctx context.Context, username, other string) error {
	fss, err := s.friendRepo.ListFriendships(ctx, username)
	if err != nil {
		return err
	}
	for _, fs := range fss {
		if fs.Contains(other) {
			if err := s.friendRepo.DeleteFriendship(ctx, fs.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// AreFriends reports whether a friendship document exists for the pair.
func (s *FriendService) AreFriends(ctx context.Context, a, b string) (bool, error) {
	fss, err := s.friendRepo.ListFriendships(ctx, a)
	if err != nil {
		return false, err
	}
	for _, fs := range fss {
		if fs.Contains(b) {
			return true, nil
		}
	}
	return false, nil
}

// Reconcile heals the non-transactional accept path: duplicate friendship
// documents for a pair are reduced to the oldest one, and pending requests
// between users who are already friends are dropped.
func (s *FriendService) Reconcile(ctx context.Context) error {
	friendships, err := s.friendRepo.ListAllFriendships(ctx)
	if err != nil {
		return err
	}

	pairs := make(map[string]bool)
	for _, fs := range friendships {
		key := pairKey(fs.Users)
		if pairs[key] {
			if err := s.friendRepo.DeleteFriendship(ctx, fs.ID); err != nil {
				return fmt.Errorf("removing duplicate friendship: %w", err)
			}
			continue
		}
		pairs[key] = true
	}

	reqs, err := s.friendRepo.ListAllRequests(ctx)
	if err != nil {
		return err
	}
	for _, req := range reqs {
		if pairs[pairKey([]string{req.From, req.To})] {
			if err := s.friendRepo.DeleteRequest(ctx, req.ID); err != nil {
				return fmt.Errorf("removing orphaned request: %w", err)
			}
		}
	}

	return nil
}

// pairKey canonicalizes an unordered username pair.
func pairKey(users []string) string {
	if len(users) == 2 && users[1] < users[0] {
		return users[1] + "\x00" + users[0]
	}
	if len(users) == 2 {
		return users[0] + "\x00" + users[1]
	}

	key := ""
	for _, u := range users {
		key += u + "\x00"
	}
	return key
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zawix/messages/internal/domain"
	"github.com/zawix/messages/internal/store"
)

type requestDoc struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Timestamp int64  `json:"timestamp"`
}

type friendshipDoc struct {
	Users     []string `json:"users"`
	Timestamp int64    `json:"timestamp"`
}

type FriendRepo struct {
	st store.Store
}

func NewFriendRepo(st store.Store) *FriendRepo {
	return &FriendRepo{st: st}
}

func (r *FriendRepo) CreateRequest(ctx context.Context, req *domain.FriendRequest) error {
	id, err := r.st.Insert(ctx, store.CollectionFriendRequests, requestDoc{
		From:      req.From,
		To:        req.To,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		return err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("parsing document id: %w", err)
	}
	req.ID = parsed
	return nil
}

func (r *FriendRepo) GetRequestByID(ctx context.Context, id uuid.UUID) (*domain.FriendRequest, error) {
	doc, err := r.st.Get(ctx, store.CollectionFriendRequests, id.String())
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	req, err := decodeRequest(doc)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListRequestsBetween returns pending requests between two usernames in
// either direction.
func (r *FriendRepo) ListRequestsBetween(ctx context.Context, a, b string) ([]domain.FriendRequest, error) {
	forward, err := r.listRequests(ctx, a, b)
	if err != nil {
		return nil, err
	}
	reverse, err := r.listRequests(ctx, b, a)
	if err != nil {
		return nil, err
	}
	return append(forward, reverse...), nil
}

func (r *FriendRepo) ListIncomingRequests(ctx context.Context, username string) ([]domain.FriendRequest, error) {
	docs, err := r.st.Query(ctx, store.CollectionFriendRequests, []store.Filter{
		{Field: "to", Op: store.OpEquals, Value: username},
	}, "timestamp")
	if err != nil {
		return nil, err
	}
	return decodeRequests(docs)
}

func (r *FriendRepo) ListOutgoingRequests(ctx context.Context, username string) ([]domain.FriendRequest, error) {
	docs, err := r.st.Query(ctx, store.CollectionFriendRequests, []store.Filter{
		{Field: "from", Op: store.OpEquals, Value: username},
	}, "timestamp")
	if err != nil {
		return nil, err
	}
	return decodeRequests(docs)
}

func (r *FriendRepo) ListAllRequests(ctx context.Context) ([]domain.FriendRequest, error) {
	docs, err := r.st.Query(ctx, store.CollectionFriendRequests, nil, "timestamp")
	if err != nil {
		return nil, err
	}
	return decodeRequests(docs)
}

func (r *FriendRepo) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	return r.st.Remove(ctx, store.CollectionFriendRequests, id.String())
}

func (r *FriendRepo) CreateFriendship(ctx context.Context, fs *domain.Friendship) error {
	id, err := r.st.Insert(ctx, store.CollectionFriends, friendshipDoc{
		Users:     fs.Users,
		Timestamp: fs.Timestamp,
	})
	if err != nil {
		return err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("parsing document id: %w", err)
	}
	fs.ID = parsed
	return nil
}

func (r *FriendRepo) ListFriendships(ctx context.Context, username string) ([]domain.Friendship, error) {
	docs, err := r.st.Query(ctx, store.CollectionFriends, []store.Filter{
		{Field: "users", Op: store.OpArrayContains, Value: username},
	}, "timestamp")
	if err != nil {
		return nil, err
	}
	return decodeFriendships(docs)
}

func (r *FriendRepo) ListAllFriendships(ctx context.Context) ([]domain.Friendship, error) {
	docs, err := r.st.Query(ctx, store.CollectionFriends, nil, "timestamp")
	if err != nil {
		return nil, err
	}
	return decodeFriendships(docs)
}

func (r *FriendRepo) DeleteFriendship(ctx context.Context, id uuid.UUID) error {
	return r.st.Remove(ctx, store.CollectionFriends, id.String())
}

func (r *FriendRepo) listRequests(ctx context.Context, from, to string) ([]domain.FriendRequest, error) {
	docs, err := r.st.Query(ctx, store.CollectionFriendRequests, []store.Filter{
		{Field: "from", Op: store.OpEquals, Value: from},
		{Field: "to", Op: store.OpEquals, Value: to},
	}, "timestamp")
	if err != nil {
		return nil, err
	}
	return decodeRequests(docs)
}

func decodeRequest(doc store.Document) (domain.FriendRequest, error) {
	var d requestDoc
	if err := json.Unmarshal(doc.Data, &d); err != nil {
		return domain.FriendRequest{}, fmt.Errorf("decoding friend request %s: %w", doc.ID, err)
	}

	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return domain.FriendRequest{}, fmt.Errorf("parsing friend request id %s: %w", doc.ID, err)
	}

	return domain.FriendRequest{
		ID:        id,
		From:      d.From,
		To:        d.To,
		Timestamp: d.Timestamp,
	}, nil
}

func decodeRequests(docs []store.Document) ([]domain.FriendRequest, error) {
	reqs := make([]domain.FriendRequest, 0, len(docs))
	for _, doc := range docs {
		req, err := decodeRequest(doc)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func decodeFriendship(doc store.Document) (domain.Friendship, error) {
	var d friendshipDoc
	if err := json.Unmarshal(doc.Data, &d); err != nil {
		return domain.Friendship{}, fmt.Errorf("decoding friendship %s: %w", doc.ID, err)
	}

	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return domain.Friendship{}, fmt.Errorf("parsing friendship id %s: %w", doc.ID, err)
	}

	return domain.Friendship{
		ID:        id,
		Users:     d.Users,
		Timestamp: d.Timestamp,
	}, nil
}

func decodeFriendships(docs []store.Document) ([]domain.Friendship, error) {
	fss := make([]domain.Friendship, 0, len(docs))
	for _, doc := range docs {
		fs, err := decodeFriendship(doc)
		if err != nil {
			return nil, err
		}
		fss = append(fss, fs)
	}
	return fss, nil
}

// Package repository provides typed access to the document store
// collections. Each repo translates domain operations into the store's
// filtered queries; missing documents come back as (nil, nil).
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/zawix/messages/internal/domain"
	"github.com/zawix/messages/internal/store"
)

type userDoc struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
	CreatedAt    int64  `json:"createdAt"`
}

type UserRepo struct {
	st store.Store
}

func NewUserRepo(st store.Store) *UserRepo {
	return &UserRepo{st: st}
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	id, err := r.st.Insert(ctx, store.CollectionUsers, userDoc{
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	})
	if err != nil {
		return err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("parsing document id: %w", err)
	}
	user.ID = parsed
	return nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	docs, err := r.st.Query(ctx, store.CollectionUsers, []store.Filter{
		{Field: "username", Op: store.OpEquals, Value: username},
	}, "")
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	user, err := decodeUser(docs[0])
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	docs, err := r.st.Query(ctx, store.CollectionUsers, nil, "createdAt")
	if err != nil {
		return nil, err
	}
	return decodeUsers(docs)
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.st.Update(ctx, store.CollectionUsers, id.String(), map[string]any{
		"passwordHash": passwordHash,
	})
}

func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.st.Remove(ctx, store.CollectionUsers, id.String())
}

func decodeUser(doc store.Document) (domain.User, error) {
	var d userDoc
	if err := json.Unmarshal(doc.Data, &d); err != nil {
		return domain.User{}, fmt.Errorf("decoding user %s: %w", doc.ID, err)
	}

	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("parsing user id %s: %w", doc.ID, err)
	}

	return domain.User{
		ID:           id,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
	}, nil
}

func decodeUsers(docs []store.Document) ([]domain.User, error) {
	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		user, err := decodeUser(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/zawix/messages/internal/domain"
	"github.com/zawix/messages/internal/store"
)

type messageDoc struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Edited    bool   `json:"edited"`
}

type MessageRepo struct {
	st store.Store
}

func NewMessageRepo(st store.Store) *MessageRepo {
	return &MessageRepo{st: st}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	id, err := r.st.Insert(ctx, store.CollectionMessages, messageDoc{
		From:      msg.From,
		To:        msg.To,
		Message:   msg.Message,
		Timestamp: msg.Timestamp,
		Edited:    msg.Edited,
	})
	if err != nil {
		return err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("parsing document id: %w", err)
	}
	msg.ID = parsed
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	doc, err := r.st.Get(ctx, store.CollectionMessages, id.String())
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	msg, err := DecodeMessage(doc)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListBetween returns the conversation between two usernames in both
// directions, ascending by timestamp.
func (r *MessageRepo) ListBetween(ctx context.Context, a, b string) ([]domain.Message, error) {
	sent, err := r.listDirected(ctx, a, b)
	if err != nil {
		return nil, err
	}
	received, err := r.listDirected(ctx, b, a)
	if err != nil {
		return nil, err
	}

	msgs := append(sent, received...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp < msgs[j].Timestamp })
	return msgs, nil
}

func (r *MessageRepo) UpdateText(ctx context.Context, id uuid.UUID, text string) error {
	return r.st.Update(ctx, store.CollectionMessages, id.String(), map[string]any{
		"message": text,
		"edited":  true,
	})
}

func (r *MessageRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.st.Remove(ctx, store.CollectionMessages, id.String())
}

// DeleteAllInvolving removes every message sent or received by username.
// Used by the account-deletion cascade.
func (r *MessageRepo) DeleteAllInvolving(ctx context.Context, username string) error {
	for _, field := range []string{"from", "to"} {
		docs, err := r.st.Query(ctx, store.CollectionMessages, []store.Filter{
			{Field: field, Op: store.OpEquals, Value: username},
		}, "")
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if err := r.st.Remove(ctx, store.CollectionMessages, doc.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
	}
	return nil
}

func (r *MessageRepo) listDirected(ctx context.Context, from, to string) ([]domain.Message, error) {
	docs, err := r.st.Query(ctx, store.CollectionMessages, []store.Filter{
		{Field: "from", Op: store.OpEquals, Value: from},
		{Field: "to", Op: store.OpEquals, Value: to},
	}, "timestamp")
	if err != nil {
		return nil, err
	}
	return DecodeMessages(docs)
}

func DecodeMessage(doc store.Document) (domain.Message, error) {
	var d messageDoc
	if err := json.Unmarshal(doc.Data, &d); err != nil {
		return domain.Message{}, fmt.Errorf("decoding message %s: %w", doc.ID, err)
	}

	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("parsing message id %s: %w", doc.ID, err)
	}

	return domain.Message{
		ID:        id,
		From:      d.From,
		To:        d.To,
		Message:   d.Message,
		Timestamp: d.Timestamp,
		Edited:    d.Edited,
	}, nil
}

// DecodeMessages converts a store snapshot in delivery order. The notify
// watcher uses it on every subscription snapshot.
func DecodeMessages(docs []store.Document) ([]domain.Message, error) {
	msgs := make([]domain.Message, 0, len(docs))
	for _, doc := range docs {
		msg, err := DecodeMessage(doc)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

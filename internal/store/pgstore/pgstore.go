// Package pgstore implements the document store on Postgres: one JSONB
// documents table, filters compiled to jsonb operators, and LISTEN/NOTIFY
// driving snapshot re-query for live subscriptions.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zawix/messages/internal/store"
)

const (
	notifyChannel = "documents_changed"
	retryDelay    = 5 * time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection text NOT NULL,
	id text NOT NULL,
	doc jsonb NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection);
`

type PGStore struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Insert(ctx context.Context, collection string, doc any) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}

	id := uuid.NewString()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)`,
		collection, id, data,
	)
	if err != nil {
		return "", err
	}

	s.notify(ctx, collection)
	return id, nil
}

func (s *PGStore) Get(ctx context.Context, collection, id string) (store.Document, error) {
	doc := store.Document{ID: id}
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&doc.Data)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, err
	}
	return doc, nil
}

func (s *PGStore) Query(ctx context.Context, collection string, filters []store.Filter, orderBy string) ([]store.Document, error) {
	query, args, err := buildQuery(collection, filters, orderBy)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var doc store.Document
		if err := rows.Scan(&doc.ID, &doc.Data); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PGStore) Subscribe(ctx context.Context, collection string, filters []store.Filter, orderBy string) (store.Subscription, error) {
	sub := &subscription{
		st:         s,
		collection: collection,
		filters:    filters,
		orderBy:    orderBy,
		out:        make(chan []store.Document),
		done:       make(chan struct{}),
	}
	go sub.run(ctx)
	return sub, nil
}

func (s *PGStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding fields: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET doc = doc || $3 WHERE collection = $1 AND id = $2`,
		collection, id, data,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	s.notify(ctx, collection)
	return nil
}

func (s *PGStore) Remove(ctx context.Context, collection, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	s.notify(ctx, collection)
	return nil
}

func (s *PGStore) Close() {
	s.pool.Close()
}

func (s *PGStore) notify(ctx context.Context, collection string) {
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, collection); err != nil {
		log.Printf("pgstore: notify %s: %v", collection, err)
	}
}

func buildQuery(collection string, filters []store.Filter, orderBy string) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, doc FROM documents WHERE collection = $1`)
	args := []any{collection}

	for _, f := range filters {
		switch f.Op {
		case store.OpEquals:
			sb.WriteString(fmt.Sprintf(` AND doc->>$%d = $%d`, len(args)+1, len(args)+2))
		case store.OpArrayContains:
			sb.WriteString(fmt.Sprintf(` AND doc->$%d ? $%d`, len(args)+1, len(args)+2))
		default:
			return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
		args = append(args, f.Field, f.Value)
	}

	if orderBy != "" {
		sb.WriteString(fmt.Sprintf(` ORDER BY (doc->>$%d)::numeric ASC`, len(args)+1))
		args = append(args, orderBy)
	} else {
		sb.WriteString(` ORDER BY id ASC`)
	}

	return sb.String(), args, nil
}

// subscription listens on the notify channel with a dedicated connection and
// re-runs its query on every matching notification. Errors are retried with
// a fixed delay for as long as the subscription is alive.
type subscription struct {
	st         *PGStore
	collection string
	filters    []store.Filter
	orderBy    string

	out  chan []store.Document
	done chan struct{}

	closeOnce sync.Once
}

func (s *subscription) Snapshots() <-chan []store.Document {
	return s.out
}

func (s *subscription) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.out)

	// Close must interrupt a blocked WaitForNotification.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		err := s.listen(ctx)
		if err != nil && !errors.Is(err, errClosed) && !errors.Is(err, context.Canceled) {
			log.Printf("pgstore: subscription %s: %v", s.collection, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-time.After(retryDelay):
		}
	}
}

func (s *subscription) listen(ctx context.Context) error {
	// LISTEN is per-connection, so this pins one pooled connection for the
	// subscription's lifetime and the pool size caps concurrent
	// subscriptions. A single shared listener fanning out to subscribers
	// would lift that cap if it becomes a problem.
	conn, err := s.st.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `LISTEN `+notifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	// Initial result set, then one snapshot per matching notification.
	if err := s.deliver(ctx); err != nil {
		return err
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("waiting for notification: %w", err)
		}
		if n.Payload != s.collection {
			continue
		}
		if err := s.deliver(ctx); err != nil {
			return err
		}
	}
}

func (s *subscription) deliver(ctx context.Context) error {
	snap, err := s.st.Query(ctx, s.collection, s.filters, s.orderBy)
	if err != nil {
		return err
	}

	select {
	case s.out <- snap:
		return nil
	case <-s.done:
		return errClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

var errClosed = errors.New("subscription closed")

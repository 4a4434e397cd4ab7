// Package store defines the document store contract the rest of the system
// is written against: CRUD over named collections of schema-less documents,
// filtered ordered queries, and live subscriptions that deliver the full
// current result set on every change.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// Collection names.
const (
	CollectionUsers          = "users"
	CollectionMessages       = "messages"
	CollectionFriends        = "friends"
	CollectionFriendRequests = "friendRequests"
)

var ErrNotFound = errors.New("document not found")

type Op string

const (
	OpEquals        Op = "=="
	OpArrayContains Op = "array-contains"
)

// Filter is a single field predicate. OpEquals compares the field to Value;
// OpArrayContains matches documents whose array field contains Value.
type Filter struct {
	Field string
	Op    Op
	Value string
}

// Document is one stored record. Data is the JSON document body; the id is
// kept outside the body, Firestore style.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Subscription is a live query. Snapshots delivers the full current result
// set after every change, starting with the initial result set. The channel
// is closed when the subscription ends; implementations keep retrying
// transient errors internally and only end on Close or context cancellation.
type Subscription interface {
	Snapshots() <-chan []Document
	Close()
}

type Store interface {
	// Insert stores doc (marshaled as JSON) under a new id and returns it.
	Insert(ctx context.Context, collection string, doc any) (string, error)

	// Get returns a single document by id, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Query returns the documents matching all filters, ordered ascending
	// by the numeric orderBy field when non-empty.
	Query(ctx context.Context, collection string, filters []Filter, orderBy string) ([]Document, error)

	// Subscribe opens a live query with the same semantics as Query.
	Subscribe(ctx context.Context, collection string, filters []Filter, orderBy string) (Subscription, error)

	// Update merges fields into an existing document. Returns ErrNotFound
	// when no document has the given id.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Remove deletes a document. Returns ErrNotFound when it is already gone.
	Remove(ctx context.Context, collection, id string) error

	Close()
}

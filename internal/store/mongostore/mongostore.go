// Package mongostore implements the document store on MongoDB. Documents
// keep their store-assigned id in _id; live subscriptions watch the
// collection's change stream and re-query the full result set per change.
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zawix/messages/internal/store"
)

const retryDelay = 5 * time.Second

type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func New(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	return &MongoStore{client: client, db: client.Database(dbName)}, nil
}

func (s *MongoStore) Insert(ctx context.Context, collection string, doc any) (string, error) {
	data, err := toMap(doc)
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}

	id := uuid.NewString()
	data["_id"] = id

	if _, err := s.db.Collection(collection).InsertOne(ctx, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, err
	}

	delete(raw, "_id")
	data, err := json.Marshal(raw)
	if err != nil {
		return store.Document{}, fmt.Errorf("encoding document %s: %w", id, err)
	}
	return store.Document{ID: id, Data: data}, nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, filters []store.Filter, orderBy string) ([]store.Document, error) {
	filter, err := buildFilter(filters)
	if err != nil {
		return nil, err
	}

	opts := options.Find()
	if orderBy != "" {
		opts.SetSort(bson.D{{Key: orderBy, Value: 1}})
	} else {
		opts.SetSort(bson.D{{Key: "_id", Value: 1}})
	}

	cursor, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []store.Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}

		id, _ := raw["_id"].(string)
		delete(raw, "_id")

		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("encoding document %s: %w", id, err)
		}
		docs = append(docs, store.Document{ID: id, Data: data})
	}
	return docs, cursor.Err()
}

func (s *MongoStore) Subscribe(ctx context.Context, collection string, filters []store.Filter, orderBy string) (store.Subscription, error) {
	cctx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		st:         s,
		collection: collection,
		filters:    filters,
		orderBy:    orderBy,
		cancel:     cancel,
		out:        make(chan []store.Document),
	}
	go sub.run(cctx)
	return sub, nil
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := toMap(fields)
	if err != nil {
		return fmt.Errorf("encoding fields: %w", err)
	}

	res, err := s.db.Collection(collection).UpdateByID(ctx, id, bson.M{"$set": data})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *MongoStore) Remove(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *MongoStore) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		log.Printf("mongostore: disconnect: %v", err)
	}
}

func buildFilter(filters []store.Filter) (bson.M, error) {
	filter := bson.M{}
	for _, f := range filters {
		switch f.Op {
		case store.OpEquals, store.OpArrayContains:
			// Mongo equality on an array field matches elements, which is
			// exactly the arrayContains contract.
			filter[f.Field] = f.Value
		default:
			return nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}
	return filter, nil
}

// toMap round-trips through JSON so stored values match what the other
// backends persist (strings, doubles, bools, arrays).
func toMap(doc any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

type subscription struct {
	st         *MongoStore
	collection string
	filters    []store.Filter
	orderBy    string

	cancel    context.CancelFunc
	out       chan []store.Document
	closeOnce sync.Once
}

func (s *subscription) Snapshots() <-chan []store.Document {
	return s.out
}

func (s *subscription) Close() {
	s.closeOnce.Do(s.cancel)
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.out)

	for {
		if err := s.watch(ctx); err != nil && ctx.Err() == nil {
			log.Printf("mongostore: subscription %s: %v", s.collection, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

func (s *subscription) watch(ctx context.Context) error {
	stream, err := s.st.db.Collection(s.collection).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return fmt.Errorf("opening change stream: %w", err)
	}
	defer stream.Close(ctx)

	if err := s.deliver(ctx); err != nil {
		return err
	}

	for stream.Next(ctx) {
		if err := s.deliver(ctx); err != nil {
			return err
		}
	}
	return stream.Err()
}

func (s *subscription) deliver(ctx context.Context) error {
	snap, err := s.st.Query(ctx, s.collection, s.filters, s.orderBy)
	if err != nil {
		return err
	}

	select {
	case s.out <- snap:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package memstore is an in-process document store. It backs the test suite
// and the zero-dependency dev mode; subscription fan-out follows the same
// full-snapshot contract as the hosted backends.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/zawix/messages/internal/store"
)

type MemStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	subs        map[*subscription]struct{}
}

func New() *MemStore {
	return &MemStore{
		collections: make(map[string]map[string]map[string]any),
		subs:        make(map[*subscription]struct{}),
	}
}

func (m *MemStore) Insert(ctx context.Context, collection string, doc any) (string, error) {
	data, err := toMap(doc)
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}

	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]map[string]any)
		m.collections[collection] = docs
	}
	docs[id] = data

	m.publishLocked(collection)
	return id, nil
}

func (m *MemStore) Get(ctx context.Context, collection, id string) (store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return store.Document{}, fmt.Errorf("encoding document %s: %w", id, err)
	}
	return store.Document{ID: id, Data: data}, nil
}

func (m *MemStore) Query(ctx context.Context, collection string, filters []store.Filter, orderBy string) ([]store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryLocked(collection, filters, orderBy)
}

func (m *MemStore) Subscribe(ctx context.Context, collection string, filters []store.Filter, orderBy string) (store.Subscription, error) {
	sub := &subscription{
		st:         m,
		collection: collection,
		filters:    filters,
		orderBy:    orderBy,
		wake:       make(chan struct{}, 1),
		out:        make(chan []store.Document),
		done:       make(chan struct{}),
	}

	m.mu.Lock()
	m.subs[sub] = struct{}{}
	initial, err := m.queryLocked(collection, filters, orderBy)
	if err != nil {
		delete(m.subs, sub)
		m.mu.Unlock()
		return nil, err
	}
	sub.push(initial)
	m.mu.Unlock()

	go sub.run()
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

func (m *MemStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	normalized, err := toMap(fields)
	if err != nil {
		return fmt.Errorf("encoding fields: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return store.ErrNotFound
	}
	for k, v := range normalized {
		doc[k] = v
	}

	m.publishLocked(collection)
	return nil
}

func (m *MemStore) Remove(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[collection][id]; !ok {
		return store.ErrNotFound
	}
	delete(m.collections[collection], id)

	m.publishLocked(collection)
	return nil
}

func (m *MemStore) Close() {
	m.mu.Lock()
	subs := make([]*subscription, 0, len(m.subs))
	for sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (m *MemStore) queryLocked(collection string, filters []store.Filter, orderBy string) ([]store.Document, error) {
	type entry struct {
		id   string
		data map[string]any
	}

	var matched []entry
	for id, doc := range m.collections[collection] {
		if matches(doc, filters) {
			matched = append(matched, entry{id: id, data: doc})
		}
	}

	if orderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			return numField(matched[i].data, orderBy) < numField(matched[j].data, orderBy)
		})
	} else {
		sort.Slice(matched, func(i, j int) bool { return matched[i].id < matched[j].id })
	}

	out := make([]store.Document, 0, len(matched))
	for _, e := range matched {
		data, err := json.Marshal(e.data)
		if err != nil {
			return nil, fmt.Errorf("encoding document %s: %w", e.id, err)
		}
		out = append(out, store.Document{ID: e.id, Data: data})
	}
	return out, nil
}

func (m *MemStore) publishLocked(collection string) {
	for sub := range m.subs {
		if sub.collection != collection {
			continue
		}
		snap, err := m.queryLocked(collection, sub.filters, sub.orderBy)
		if err != nil {
			continue
		}
		sub.push(snap)
	}
}

func (m *MemStore) removeSub(sub *subscription) {
	m.mu.Lock()
	delete(m.subs, sub)
	m.mu.Unlock()
}

func matches(doc map[string]any, filters []store.Filter) bool {
	for _, f := range filters {
		v, ok := doc[f.Field]
		if !ok {
			return false
		}
		switch f.Op {
		case store.OpEquals:
			s, ok := v.(string)
			if !ok || s != f.Value {
				return false
			}
		case store.OpArrayContains:
			arr, ok := v.([]any)
			if !ok {
				return false
			}
			found := false
			for _, el := range arr {
				if s, ok := el.(string); ok && s == f.Value {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func numField(doc map[string]any, field string) float64 {
	if v, ok := doc[field].(float64); ok {
		return v
	}
	return 0
}

// toMap normalizes a value to the decoded-JSON representation stored
// internally, so queries see the same types regardless of input.
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

// subscription queues snapshots between the store's write path and the
// consumer. Writes never block; the consumer drains in order.
type subscription struct {
	st         *MemStore
	collection string
	filters    []store.Filter
	orderBy    string

	mu    sync.Mutex
	queue [][]store.Document

	wake chan struct{}
	out  chan []store.Document
	done chan struct{}

	closeOnce sync.Once
}

func (s *subscription) Snapshots() <-chan []store.Document {
	return s.out
}

func (s *subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.st.removeSub(s)
	})
}

func (s *subscription) push(snap []store.Document) {
	s.mu.Lock()
	s.queue = append(s.queue, snap)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			snap := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.out <- snap:
			case <-s.done:
				return
			}
		}
	}
}

package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/zawix/messages/internal/domain"
	"github.com/zawix/messages/internal/repository"
	"github.com/zawix/messages/internal/store"
)

const subscribeRetryDelay = 5 * time.Second

// Sink receives the notifications a watcher produces.
type Sink interface {
	Deliver(username string, n Notification)
}

// Watcher follows one user's inbound messages through a live store
// subscription and pushes deduplicated notifications into a Sink. An
// optional snapshot callback additionally receives every full snapshot,
// which the websocket layer uses to stream message state to the client.
type Watcher struct {
	st         store.Store
	sink       Sink
	username   string
	dedup      *Deduplicator
	onSnapshot func([]domain.Message)

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewWatcher(st store.Store, sink Sink, username string, trackByID bool) *Watcher {
	dedup := NewDeduplicator(trackByID)
	dedup.SetUser(username)
	return &Watcher{
		st:       st,
		sink:     sink,
		username: username,
		dedup:    dedup,
		done:     make(chan struct{}),
	}
}

// OnSnapshot registers a callback invoked with every decoded snapshot
// before deduplication. Must be called before Start.
func (w *Watcher) OnSnapshot(fn func([]domain.Message)) {
	w.onSnapshot = fn
}

// Start launches the watch loop. It runs until Stop is called or ctx is
// cancelled.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
}

// Stop ends the watch loop and waits for it to exit. Calling Stop on a
// watcher that was never started is a no-op.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		if w.cancel == nil {
			return
		}
		w.cancel()
		<-w.done
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	filters := []store.Filter{
		{Field: "to", Op: store.OpEquals, Value: w.username},
	}

	for {
		sub, err := w.st.Subscribe(ctx, store.CollectionMessages, filters, "timestamp")
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("notify: subscribe for %s failed: %v, retrying in %s", w.username, err, subscribeRetryDelay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(subscribeRetryDelay):
			}
			continue
		}

		for docs := range sub.Snapshots() {
			msgs, err := repository.DecodeMessages(docs)
			if err != nil {
				log.Printf("notify: decoding snapshot for %s: %v", w.username, err)
				continue
			}
			if w.onSnapshot != nil {
				w.onSnapshot(msgs)
			}
			for _, n := range w.dedup.OnSnapshot(msgs) {
				w.sink.Deliver(w.username, n)
			}
		}
		sub.Close()

		if ctx.Err() != nil {
			return
		}

		// The snapshot channel closed without the context ending, so the
		// backend gave up on this subscription. Open a fresh one.
		select {
		case <-ctx.Done():
			return
		case <-time.After(subscribeRetryDelay):
		}
	}
}

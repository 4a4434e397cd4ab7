package memstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zawix/messages/internal/store"
)

type testDoc struct {
	Name      string   `json:"name"`
	Tags      []string `json:"tags,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

func TestMemStore_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	st := New()
	defer st.Close()

	id, err := st.Insert(ctx, "things", testDoc{Name: "one", Timestamp: 10})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := st.Get(ctx, "things", id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)

	var decoded testDoc
	require.NoError(t, json.Unmarshal(doc.Data, &decoded))
	assert.Equal(t, "one", decoded.Name)
}

func TestMemStore_GetMissing(t *testing.T) {
	st := New()
	defer st.Close()

	_, err := st.Get(context.Background(), "things", "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemStore_QueryEqualsFilter(t *testing.T) {
	ctx := context.Background()
	st := New()
	defer st.Close()

	_, err := st.Insert(ctx, "things", testDoc{Name: "one", Timestamp: 1})
	require.NoError(t, err)
	_, err = st.Insert(ctx, "things", testDoc{Name: "two", Timestamp: 2})
	require.NoError(t, err)

	docs, err := st.Query(ctx, "things", []store.Filter{
		{Field: "name", Op: store.OpEquals, Value: "two"},
	}, "")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	var decoded testDoc
	require.NoError(t, json.Unmarshal(docs[0].Data, &decoded))
	assert.Equal(t, "two", decoded.Name)
}

func TestMemStore_QueryArrayContains(t *testing.T) {
	ctx := context.Background()
	st := New()
	defer st.Close()

	_, err := st.Insert(ctx, "things", testDoc{Name: "tagged", Tags: []string{"a", "b"}})
	require.NoError(t, err)
	_, err = st.Insert(ctx, "things", testDoc{Name: "other", Tags: []string{"c"}})
	require.NoError(t, err)

	docs, err := st.Query(ctx, "things", []store.Filter{
		{Field: "tags", Op: store.OpArrayContains, Value: "b"},
	}, "")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	var decoded testDoc
	require.NoError(t, json.Unmarshal(docs[0].Data, &decoded))
	assert.Equal(t, "tagged", decoded.Name)
}

func TestMemStore_QueryOrdered(t *testing.T) {
	ctx := context.Background()
	st := New()
	defer st.Close()

	for _, ts := range []int64{30, 10, 20} {
		_, err := st.Insert(ctx, "things", testDoc{Name: "n", Timestamp: ts})
		require.NoError(t, err)
	}

	docs, err := st.Query(ctx, "things", nil, "timestamp")
	require.NoError(t, err)
	require.Len(t, docs, 3)

	var got []int64
	for _, d := range docs {
		var decoded testDoc
		require.NoError(t, json.Unmarshal(d.Data, &decoded))
		got = append(got, decoded.Timestamp)
	}
	assert.Equal(t, []int64{10, 20, 30}, got)
}

func TestMemStore_UpdateMergesFields(t *testing.T) {
	ctx := context.Background()
	st := New()
	defer st.Close()

	id, err := st.Insert(ctx, "things", testDoc{Name: "before", Timestamp: 5})
	require.NoError(t, err)

	require.NoError(t, st.Update(ctx, "things", id, map[string]any{"name": "after"}))

	doc, err := st.Get(ctx, "things", id)
	require.NoError(t, err)

	var decoded testDoc
	require.NoError(t, json.Unmarshal(doc.Data, &decoded))
	assert.Equal(t, "after", decoded.Name)
	assert.Equal(t, int64(5), decoded.Timestamp, "untouched fields survive the merge")

	assert.ErrorIs(t, st.Update(ctx, "things", "missing", map[string]any{"name": "x"}), store.ErrNotFound)
}

func TestMemStore_Remove(t *testing.T) {
	ctx := context.Background()
	st := New()
	defer st.Close()

	id, err := st.Insert(ctx, "things", testDoc{Name: "gone"})
	require.NoError(t, err)

	require.NoError(t, st.Remove(ctx, "things", id))
	assert.ErrorIs(t, st.Remove(ctx, "things", id), store.ErrNotFound)
}

func TestMemStore_SubscribeDeliversSnapshots(t *testing.T) {
	ctx := context.Background()
	st := New()
	defer st.Close()

	_, err := st.Insert(ctx, "things", testDoc{Name: "first", Timestamp: 1})
	require.NoError(t, err)

	sub, err := st.Subscribe(ctx, "things", nil, "timestamp")
	require.NoError(t, err)
	defer sub.Close()

	snap := waitSnapshot(t, sub)
	require.Len(t, snap, 1)

	_, err = st.Insert(ctx, "things", testDoc{Name: "second", Timestamp: 2})
	require.NoError(t, err)

	snap = waitSnapshot(t, sub)
	require.Len(t, snap, 2)

	var decoded testDoc
	require.NoError(t, json.Unmarshal(snap[1].Data, &decoded))
	assert.Equal(t, "second", decoded.Name)
}

func TestMemStore_SubscribeFilterScopesSnapshots(t *testing.T) {
	ctx := context.Background()
	st := New()
	defer st.Close()

	sub, err := st.Subscribe(ctx, "things", []store.Filter{
		{Field: "name", Op: store.OpEquals, Value: "wanted"},
	}, "")
	require.NoError(t, err)
	defer sub.Close()

	require.Empty(t, waitSnapshot(t, sub))

	_, err = st.Insert(ctx, "things", testDoc{Name: "unwanted"})
	require.NoError(t, err)
	require.Empty(t, waitSnapshot(t, sub))

	_, err = st.Insert(ctx, "things", testDoc{Name: "wanted"})
	require.NoError(t, err)

	snap := waitSnapshot(t, sub)
	require.Len(t, snap, 1)
}

func TestMemStore_SubscribeCloseEndsStream(t *testing.T) {
	ctx := context.Background()
	st := New()
	defer st.Close()

	sub, err := st.Subscribe(ctx, "things", nil, "")
	require.NoError(t, err)

	waitSnapshot(t, sub)
	sub.Close()

	select {
	case _, ok := <-sub.Snapshots():
		assert.False(t, ok, "channel should close after Close")
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot channel did not close")
	}
}

func waitSnapshot(t *testing.T, sub store.Subscription) []store.Document {
	t.Helper()
	select {
	case snap := <-sub.Snapshots():
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

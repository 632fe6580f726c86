package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"event-aggregator/internal/application"
	"event-aggregator/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "test"), mr
}

func candidate(topic, id, payload string) domain.Event {
	return domain.Event{
		Topic:      topic,
		EventID:    id,
		OccurredAt: time.Date(2025, 12, 12, 10, 0, 0, 0, time.UTC),
		Source:     "pytest",
		Payload:    json.RawMessage(payload),
	}
}

func TestInsertIfAbsent(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	res, err := store.InsertIfAbsent(ctx, candidate("t", "a", `{"try":1}`))
	require.NoError(t, err)
	require.True(t, res.Inserted)
	require.EqualValues(t, 1, res.SequenceID)

	res, err = store.InsertIfAbsent(ctx, candidate("t", "a", `{"try":2}`))
	require.NoError(t, err)
	require.False(t, res.Inserted)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	list, err := store.List(ctx, domain.ListQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, `{"try":1}`, string(list[0].Payload))
	require.Equal(t, "pytest", list[0].Source)
	require.Equal(t, time.Date(2025, 12, 12, 10, 0, 0, 0, time.UTC), list[0].OccurredAt)
}

func TestInsertIfAbsent_TopicWithSeparatorDoesNotCollide(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	a, err := store.InsertIfAbsent(ctx, candidate("a:b", "c", `{}`))
	require.NoError(t, err)
	b, err := store.InsertIfAbsent(ctx, candidate("a", "b:c", `{}`))
	require.NoError(t, err)
	require.True(t, a.Inserted)
	require.True(t, b.Inserted)
}

func TestInsertIfAbsent_Race(t *testing.T) {
	store, _ := newStore(t)
	const n = 10
	var wg sync.WaitGroup
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.InsertIfAbsent(context.Background(), candidate("race", "x", `{}`))
			if err == nil {
				results <- res.Inserted
			}
		}()
	}
	wg.Wait()
	close(results)

	var wins, total int
	for ok := range results {
		total++
		if ok {
			wins++
		}
	}
	require.Equal(t, n, total)
	require.Equal(t, 1, wins)
}

func TestStoredAt_NonDecreasing(t *testing.T) {
	store, _ := newStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(-time.Minute), base.Add(time.Minute)}
	var i int
	store.now = func() time.Time {
		now := ticks[i]
		i++
		return now
	}

	var got []time.Time
	for k := range ticks {
		res, err := store.InsertIfAbsent(context.Background(), candidate("t", fmt.Sprint(k), `{}`))
		require.NoError(t, err)
		got = append(got, res.StoredAt)
	}
	require.Equal(t, []time.Time{base, base, base.Add(time.Minute)}, got)
}

func TestList_TopicFilterAndCursor(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		topic := "a"
		if i%2 == 1 {
			topic = "b"
		}
		_, err := store.InsertIfAbsent(ctx, candidate(topic, fmt.Sprint(i), `{}`))
		require.NoError(t, err)
	}

	all, err := store.List(ctx, domain.ListQuery{Limit: 3})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.EqualValues(t, []int64{8, 7, 6}, []int64{all[0].SequenceID, all[1].SequenceID, all[2].SequenceID})

	b, err := store.List(ctx, domain.ListQuery{Topic: "b", Limit: 10})
	require.NoError(t, err)
	require.Len(t, b, 4)
	for _, e := range b {
		require.Equal(t, "b", e.Topic)
	}

	older, err := store.List(ctx, domain.ListQuery{Limit: 10, Before: 3})
	require.NoError(t, err)
	require.Len(t, older, 2)
	require.EqualValues(t, 2, older[0].SequenceID)

	none, err := store.List(ctx, domain.ListQuery{Topic: "missing", Limit: 10})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestUnavailable(t *testing.T) {
	store, mr := newStore(t)
	mr.Close()

	_, err := store.InsertIfAbsent(context.Background(), candidate("t", "a", `{}`))
	require.ErrorIs(t, err, application.ErrStoreUnavailable)
	_, err = store.Count(context.Background())
	require.ErrorIs(t, err, application.ErrStoreUnavailable)
	require.ErrorIs(t, store.Ping(context.Background()), application.ErrStoreUnavailable)
}

func TestList_CursorPastNewest(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := store.InsertIfAbsent(ctx, candidate("t", fmt.Sprint(i), `{}`))
		require.NoError(t, err)
	}

	page, err := store.List(ctx, domain.ListQuery{Limit: 10, Before: 1000})
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.EqualValues(t, 3, page[0].SequenceID)
}

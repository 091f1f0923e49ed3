package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type factory func(t *testing.T, opts ...Option) Store

// runConformance exercises the ordering contract every backend must honor.
func runConformance(t *testing.T, newStore factory) {
	t.Run("appends are numbered in persist order", func(t *testing.T) {
		testAppendScenario(t, newStore(t))
	})
	t.Run("appended message round trips", func(t *testing.T) {
		testRoundTrip(t, newStore(t))
	})
	t.Run("list recent returns the newest suffix oldest first", func(t *testing.T) {
		testListRecent(t, newStore(t))
	})
	t.Run("concurrent appends are gap free", func(t *testing.T) {
		testConcurrentAppends(t, newStore(t))
	})
	t.Run("cancelled append writes nothing", func(t *testing.T) {
		testCancelledAppend(t, newStore(t))
	})
	t.Run("deadline passing mid append writes nothing", func(t *testing.T) {
		testContextExpiresDuringAppend(t, newStore)
	})
	t.Run("created at never goes backwards", func(t *testing.T) {
		testClockSkew(t, newStore)
	})
	t.Run("empty store", func(t *testing.T) {
		testEmptyStore(t, newStore(t))
	})
}

func testAppendScenario(t *testing.T, s Store) {
	req := require.New(t)
	ctx := context.Background()

	_, err := s.Append(ctx, "ana", "hola")
	req.NoError(err)
	_, err = s.Append(ctx, "beto", "hola a ti")
	req.NoError(err)

	messages, err := s.ListAll(ctx)
	req.NoError(err)
	req.Len(messages, 2)

	req.Equal(int64(1), messages[0].ID)
	req.Equal("ana", messages[0].Author)
	req.Equal("hola", messages[0].Body)
	req.Equal(int64(2), messages[1].ID)
	req.Equal("beto", messages[1].Author)
	req.Equal("hola a ti", messages[1].Body)
	req.False(messages[1].CreatedAt.Before(messages[0].CreatedAt))
}

func testRoundTrip(t *testing.T, s Store) {
	req := require.New(t)
	ctx := context.Background()

	appended, err := s.Append(ctx, "ana", "¿qué tal? 👋")
	req.NoError(err)
	blank, err := s.Append(ctx, "ana", "")
	req.NoError(err)

	messages, err := s.ListAll(ctx)
	req.NoError(err)
	req.Len(messages, 2)

	for i, want := range []chat.Message{appended, blank} {
		got := messages[i]
		req.Equal(want.ID, got.ID)
		req.Equal(want.Author, got.Author)
		req.Equal(want.Body, got.Body)
		req.True(want.CreatedAt.Equal(got.CreatedAt), "created at %v != %v", want.CreatedAt, got.CreatedAt)
	}
}

func testListRecent(t *testing.T, s Store) {
	req := require.New(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := s.Append(ctx, "ana", fmt.Sprintf("message %d", i))
		req.NoError(err)
	}

	recent, err := s.ListRecent(ctx, 2)
	req.NoError(err)
	req.Equal([]int64{4, 5}, ids(recent))

	all, err := s.ListAll(ctx)
	req.NoError(err)

	for _, limit := range []int{1, 3, 5, 10} {
		recent, err = s.ListRecent(ctx, limit)
		req.NoError(err)
		n := min(limit, len(all))
		req.Len(recent, n)
		// Always a suffix of the full history
		req.Equal(ids(all[len(all)-n:]), ids(recent))
	}

	for _, limit := range []int{0, -1} {
		recent, err = s.ListRecent(ctx, limit)
		req.NoError(err)
		req.Empty(recent)
	}
}

func testConcurrentAppends(t *testing.T, s Store) {
	req := require.New(t)
	ctx := context.Background()
	const writers, perWriter = 8, 25

	var wg sync.WaitGroup
	var mu sync.Mutex
	var returned []int64
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				msg, err := s.Append(ctx, fmt.Sprintf("writer-%d", w), fmt.Sprintf("%d", i))
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				returned = append(returned, msg.ID)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	messages, err := s.ListAll(ctx)
	req.NoError(err)
	req.Len(messages, writers*perWriter)

	// IDs are exactly 1..N with no gap and no duplicate
	req.ElementsMatch(lo.RangeFrom(int64(1), writers*perWriter), returned)
	for i, m := range messages {
		req.Equal(int64(i+1), m.ID)
		if i > 0 {
			req.False(m.CreatedAt.Before(messages[i-1].CreatedAt))
		}
	}
}

func testCancelledAppend(t *testing.T, s Store) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Append(ctx, "ana", "never stored")
	req.ErrorIs(err, chat.ErrStorageUnavailable)

	messages, err := s.ListAll(context.Background())
	req.NoError(err)
	req.Empty(messages)

	// The failed append did not consume an ID
	msg, err := s.Append(context.Background(), "ana", "stored")
	req.NoError(err)
	req.Equal(int64(1), msg.ID)
}

func testContextExpiresDuringAppend(t *testing.T, newStore factory) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The clock is read after the entry check, so cancelling here
	// simulates a deadline passing while the write is in flight
	clock := func() time.Time {
		cancel()
		return time.Now()
	}
	s := newStore(t, WithClock(clock))

	_, err := s.Append(ctx, "ana", "too late")
	req.ErrorIs(err, chat.ErrStorageUnavailable)

	messages, err := s.ListAll(context.Background())
	req.NoError(err)
	req.Empty(messages)

	msg, err := s.Append(context.Background(), "ana", "stored")
	req.NoError(err)
	req.Equal(int64(1), msg.ID)
}

func testClockSkew(t *testing.T, newStore factory) {
	req := require.New(t)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(-time.Minute), base.Add(time.Second)}
	var mu sync.Mutex
	calls := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		at := ticks[min(calls, len(ticks)-1)]
		calls++
		return at
	}
	s := newStore(t, WithClock(clock))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Append(ctx, "ana", "tick")
		req.NoError(err)
	}

	messages, err := s.ListAll(ctx)
	req.NoError(err)
	req.Len(messages, 3)
	req.True(messages[0].CreatedAt.Equal(base))
	// The clock stepped back a minute, the log did not
	req.True(messages[1].CreatedAt.Equal(base))
	req.True(messages[2].CreatedAt.Equal(base.Add(time.Second)))
	req.Equal([]int64{1, 2, 3}, ids(messages))
}

func testEmptyStore(t *testing.T, s Store) {
	req := require.New(t)
	ctx := context.Background()

	all, err := s.ListAll(ctx)
	req.NoError(err)
	req.Empty(all)

	recent, err := s.ListRecent(ctx, 10)
	req.NoError(err)
	req.Empty(recent)
}

func ids(messages []chat.Message) []int64 {
	return lo.Map(messages, func(m chat.Message, _ int) int64 { return m.ID })
}

package live_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/quizparty/backend/internal/domain"
	"github.com/quizparty/backend/internal/live"
)

func TestStore_SessionRoundTrip(t *testing.T) {
	s := makeStore(t)
	ctx := context.Background()

	loaded, err := s.LoadSession(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded, "no session should load as nil")

	ss := &domain.Session{
		QuizID:    "Q1",
		Expired:   time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
		Options:   map[string]string{"a": "Paris", "b": "Lyon"},
		Title:     "What is the capital of France?",
		HasWinner: false,
	}
	require.NoError(t, s.ReplaceSession(ctx, ss, false))

	loaded, err = s.LoadSession(ctx)
	require.NoError(t, err)
	require.Equal(t, ss, loaded)
}

func TestStore_ReplaceSessionClosesPreviousRound(t *testing.T) {
	s := makeStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceSession(ctx, &domain.Session{
		QuizID:  "Q1",
		Expired: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
		Options: map[string]string{"a": "Paris", "b": "Lyon"},
		Title:   "What is the capital of France?",
	}, false))
	require.NoError(t, s.MarkWinner(ctx))

	next := &domain.Session{
		QuizID:  "Q2",
		Expired: time.Date(2026, 8, 31, 12, 5, 0, 0, time.UTC),
		Options: map[string]string{"a": "Venus", "b": "Mercury"},
		Title:   "Which planet is closest to the sun?",
	}
	require.NoError(t, s.ReplaceSession(ctx, next, false))

	loaded, err := s.LoadSession(ctx)
	require.NoError(t, err)
	require.Equal(t, next, loaded, "nothing of the old round should survive, including the winner flag")
}

func TestStore_MarkWinner(t *testing.T) {
	s := makeStore(t)
	ctx := context.Background()

	ss := &domain.Session{
		QuizID:  "Q1",
		Expired: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
		Options: map[string]string{"a": "Paris"},
		Title:   "What is the capital of France?",
	}
	require.NoError(t, s.ReplaceSession(ctx, ss, false))
	require.NoError(t, s.MarkWinner(ctx))

	loaded, err := s.LoadSession(ctx)
	require.NoError(t, err)
	require.True(t, loaded.HasWinner)

	// Only the flag changes.
	loaded.HasWinner = false
	require.Equal(t, ss, loaded)
}

func TestStore_PutResultIsConditional(t *testing.T) {
	s := makeStore(t)
	ctx := context.Background()

	loaded, err := s.LoadResult(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded, "no result should load as nil")

	first := &domain.Result{
		QuizID:     "Q1",
		WinnerName: "Alice",
		Winner:     "u1",
		AnswerTime: time.Date(2026, 8, 31, 12, 0, 30, 0, time.UTC),
		Answer:     "Paris",
	}
	claimed, err := s.PutResult(ctx, first)
	require.NoError(t, err)
	require.True(t, claimed, "first write should claim the record")

	claimed, err = s.PutResult(ctx, &domain.Result{QuizID: "Q1", Winner: "u2"})
	require.NoError(t, err)
	require.False(t, claimed, "second write should lose")

	loaded, err = s.LoadResult(ctx)
	require.NoError(t, err)
	require.Equal(t, first, loaded, "the losing write should not overwrite the winner")
}

func TestStore_PutResultConcurrent(t *testing.T) {
	s := makeStore(t)
	ctx := context.Background()

	const racers = 16

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			claimed, err := s.PutResult(ctx, &domain.Result{QuizID: "Q1"})
			require.NoError(t, err)

			if claimed {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, winners, "exactly one racer should claim the result")
}

func TestStore_ReplaceSessionClearsResult(t *testing.T) {
	s := makeStore(t)
	ctx := context.Background()

	_, err := s.PutResult(ctx, &domain.Result{QuizID: "Q1", Winner: "u1"})
	require.NoError(t, err)

	require.NoError(t, s.ReplaceSession(ctx, &domain.Session{QuizID: "Q2"}, true))

	loaded, err := s.LoadResult(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded, "the stale result should go with the old round")

	claimed, err := s.PutResult(ctx, &domain.Result{QuizID: "Q2", Winner: "u2"})
	require.NoError(t, err)
	require.True(t, claimed, "a cleared record should be claimable again")
}

func TestStore_ReplaceSessionKeepsResult(t *testing.T) {
	s := makeStore(t)
	ctx := context.Background()

	_, err := s.PutResult(ctx, &domain.Result{QuizID: "Q1", Winner: "u1"})
	require.NoError(t, err)

	require.NoError(t, s.ReplaceSession(ctx, &domain.Session{QuizID: "Q2"}, false))

	loaded, err := s.LoadResult(ctx)
	require.NoError(t, err)
	require.Equal(t, "u1", loaded.Winner)
}

func makeStore(t *testing.T) *live.Store {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	return live.NewStore(live.Config{
		Redis:  rc,
		Prefix: "quizparty",
	})
}

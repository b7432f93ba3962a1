// Package live holds the two singleton records of a running party: the
// current session and the last declared result, both kept in Redis.
package live

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quizparty/backend/internal/domain"
)

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
}

type Store struct {
	redis  redis.UniversalClient
	prefix string
}

func NewStore(c Config) *Store {
	return &Store{
		redis:  c.Redis,
		prefix: c.Prefix,
	}
}

// The session is a hash so the winner flag can be flipped without
// rewriting the whole record.
const (
	fieldQuizID    = "quiz_id"
	fieldExpired   = "expired"
	fieldTitle     = "title"
	fieldHasWinner = "has_winner"
	fieldOptions   = "options"
)

// resultRecord is the wire layout of the result value.
type resultRecord struct {
	QuizID     string `json:"quiz_id"`
	WinnerName string `json:"winner_name"`
	Winner     string `json:"winner"`
	AnswerTime string `json:"answer_time"`
	Answer     string `json:"answer"`
}

// ReplaceSession unconditionally overwrites the session record. Any round
// previously described by it is closed the moment this returns. With
// clearResult the result record is removed in the same transaction: no
// submission can claim the new round before the stale result is gone, so
// the clear can never erase a freshly declared winner.
func (s *Store) ReplaceSession(ctx context.Context, ss *domain.Session, clearResult bool) error {
	options, err := json.Marshal(ss.Options)
	if err != nil {
		return fmt.Errorf("live: marshal options: %w", err)
	}

	hasWinner := "0"
	if ss.HasWinner {
		hasWinner = "1"
	}

	// DEL+HSET in one transaction so no reader sees a half-replaced hash.
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, s.sessionKey())
	pipe.HSet(ctx, s.sessionKey(), map[string]any{
		fieldQuizID:    ss.QuizID,
		fieldExpired:   ss.Expired.Format(time.RFC3339),
		fieldTitle:     ss.Title,
		fieldHasWinner: hasWinner,
		fieldOptions:   options,
	})
	if clearResult {
		pipe.Del(ctx, s.resultKey())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("live: replace session: %w", err)
	}

	return nil
}

// LoadSession returns the current session, or (nil, nil) when none exists.
func (s *Store) LoadSession(ctx context.Context) (*domain.Session, error) {
	m, err := s.redis.HGetAll(ctx, s.sessionKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("live: load session: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}

	ss := &domain.Session{
		QuizID:    m[fieldQuizID],
		Title:     m[fieldTitle],
		HasWinner: m[fieldHasWinner] == "1",
	}

	if v := m[fieldExpired]; v != "" {
		ss.Expired, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("live: parse session expiry: %w", err)
		}
	}

	if v := m[fieldOptions]; v != "" {
		if err := json.Unmarshal([]byte(v), &ss.Options); err != nil {
			return nil, fmt.Errorf("live: unmarshal session options: %w", err)
		}
	}

	return ss, nil
}

// MarkWinner flips the session's winner flag. The rest of the record stays
// untouched.
func (s *Store) MarkWinner(ctx context.Context) error {
	if err := s.redis.HSet(ctx, s.sessionKey(), fieldHasWinner, "1").Err(); err != nil {
		return fmt.Errorf("live: mark winner: %w", err)
	}

	return nil
}

// PutResult writes the result record only if none exists, and reports
// whether this write claimed it. The conditional write is what makes the
// at-most-one-winner invariant hold under racing correct submissions.
func (s *Store) PutResult(ctx context.Context, r *domain.Result) (bool, error) {
	b, err := json.Marshal(resultRecord{
		QuizID:     r.QuizID,
		WinnerName: r.WinnerName,
		Winner:     r.Winner,
		AnswerTime: r.AnswerTime.Format(time.RFC3339),
		Answer:     r.Answer,
	})
	if err != nil {
		return false, fmt.Errorf("live: marshal result: %w", err)
	}

	ok, err := s.redis.SetNX(ctx, s.resultKey(), b, 0).Result()
	if err != nil {
		return false, fmt.Errorf("live: put result: %w", err)
	}

	return ok, nil
}

// LoadResult returns the last declared result, or (nil, nil) when none
// exists.
func (s *Store) LoadResult(ctx context.Context) (*domain.Result, error) {
	b, err := s.redis.Get(ctx, s.resultKey()).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("live: load result: %w", err)
	}

	var rec resultRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("live: unmarshal result: %w", err)
	}

	r := &domain.Result{
		QuizID:     rec.QuizID,
		WinnerName: rec.WinnerName,
		Winner:     rec.Winner,
		Answer:     rec.Answer,
	}

	if rec.AnswerTime != "" {
		r.AnswerTime, err = time.Parse(time.RFC3339, rec.AnswerTime)
		if err != nil {
			return nil, fmt.Errorf("live: parse answer time: %w", err)
		}
	}

	return r, nil
}

func (s *Store) sessionKey() string {
	return fmt.Sprintf("%s:session", s.prefix)
}

func (s *Store) resultKey() string {
	return fmt.Sprintf("%s:result", s.prefix)
}

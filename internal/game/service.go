// Package game implements the two flows of a party round: assigning a new
// game and arbitrating answer submissions.
package game

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quizparty/backend/internal/auth"
	"github.com/quizparty/backend/internal/domain"
	"github.com/quizparty/backend/internal/errors"
	"github.com/quizparty/backend/internal/event"
)

const defaultSessionWindow = 60 * time.Second

// ErrPermissionDenied is returned when the caller may not start a game.
var ErrPermissionDenied = stderrors.New("game: permission denied, admin only")

// QuizStore is the quiz collection. Get returns (nil, nil) for a missing
// document.
type QuizStore interface {
	LeastPlayed(ctx context.Context) (*domain.Quiz, error)
	Get(ctx context.Context, quizID string) (*domain.Quiz, error)
	IncrementPlayed(ctx context.Context, quizID string) error
}

// LiveStore holds the singleton session and result records. The load
// methods return (nil, nil) for a missing record; PutResult reports whether
// the write claimed the record. ReplaceSession with clearResult must
// replace the session and remove the result atomically.
type LiveStore interface {
	LoadSession(ctx context.Context) (*domain.Session, error)
	ReplaceSession(ctx context.Context, ss *domain.Session, clearResult bool) error
	MarkWinner(ctx context.Context) error
	LoadResult(ctx context.Context) (*domain.Result, error)
	PutResult(ctx context.Context, r *domain.Result) (bool, error)
}

type Config struct {
	Quiz     QuizStore
	Live     LiveStore
	EventBus *event.Bus

	// StartPolicy decides who may call NewGame.
	StartPolicy auth.Policy

	// SessionWindow is how long a new round is announced to last.
	// Defaults to 60 seconds.
	SessionWindow time.Duration

	// PreserveResult keeps the previous result record when a new game
	// starts. The original system never cleared it, which let a stale
	// result block a new round on the same quiz; clearing is the default.
	PreserveResult bool

	// Now is the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	quiz   QuizStore
	live   LiveStore
	eb     *event.Bus
	policy auth.Policy

	window   time.Duration
	preserve bool
	now      func() time.Time
}

func NewService(c Config) *Service {
	if c.SessionWindow <= 0 {
		c.SessionWindow = defaultSessionWindow
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	return &Service{
		quiz:     c.Quiz,
		live:     c.Live,
		eb:       c.EventBus,
		policy:   c.StartPolicy,
		window:   c.SessionWindow,
		preserve: c.PreserveResult,
		now:      c.Now,
	}
}

type NewGameResponse struct {
	QuizID string
}

// NewGame picks the least-played quiz and makes it the live round. The old
// session record is overwritten unconditionally, so any in-flight answers
// for the previous round are rejected from that point on. There is no
// rollback: if the play-counter update fails after the session write, the
// new session stays.
func (s *Service) NewGame(ctx context.Context, caller auth.Identity) (*NewGameResponse, error) {
	if !s.policy.CanStartGame(caller) {
		return nil, ErrPermissionDenied
	}

	q, err := s.quiz.LeastPlayed(ctx)
	if err != nil {
		return nil, fmt.Errorf("pick quiz: %w", err)
	}

	ss := &domain.Session{
		QuizID:    q.QuizID,
		Expired:   s.now().Add(s.window),
		Options:   q.OptionMap(),
		Title:     q.Question,
		HasWinner: false,
	}

	// The stale result is cleared in the same transaction as the session
	// replacement: a winner declared for the new round can never be erased
	// by the clear.
	if err := s.live.ReplaceSession(ctx, ss, !s.preserve); err != nil {
		return nil, fmt.Errorf("replace session: %w", err)
	}

	if err := s.quiz.IncrementPlayed(ctx, q.QuizID); err != nil {
		return nil, fmt.Errorf("update play count: %w", err)
	}

	s.eb.Publish(ctx, domain.EventGameStarted{Session: *ss})

	return &NewGameResponse{QuizID: q.QuizID}, nil
}

type SubmitAnswerRequest struct {
	QuizID string
	// Answer is the id of the chosen option.
	Answer string
}

type SubmitAnswerResponse struct {
	// Winner is false for a wrong answer, which is a normal outcome.
	Winner    bool
	Submitted string
	// Expected is the correct option id, empty when the quiz is unknown.
	Expected string
}

// SubmitAnswer arbitrates one submission. The session, result and quiz
// reads are issued concurrently and joined before any check runs; the two
// final writes are likewise joined before success is reported.
//
// The result write is conditional: when two correct submissions race past
// the checks, exactly one claims the record and the other gets the
// already-decided rejection.
func (s *Service) SubmitAnswer(ctx context.Context, caller auth.Identity, req SubmitAnswerRequest) (*SubmitAnswerResponse, error) {
	var (
		session *domain.Session
		result  *domain.Result
		q       *domain.Quiz
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		session, err = s.live.LoadSession(egCtx)
		return err
	})
	eg.Go(func() (err error) {
		result, err = s.live.LoadResult(egCtx)
		return err
	})
	eg.Go(func() (err error) {
		q, err = s.quiz.Get(egCtx, req.QuizID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, errors.ReadFailed(err)
	}

	// A replaced or absent session closes the round for the old quiz id.
	if session == nil || session.QuizID != req.QuizID {
		return nil, errors.New(errors.CodeSessionClosed)
	}

	if result != nil && result.QuizID == req.QuizID {
		return nil, errors.New(errors.CodeAlreadyDecided)
	}

	if q == nil || req.Answer != q.Answer {
		resp := &SubmitAnswerResponse{Submitted: req.Answer}
		if q != nil {
			resp.Expected = q.Answer
		}
		return resp, nil
	}

	res := &domain.Result{
		QuizID:     session.QuizID,
		WinnerName: caller.Name,
		Winner:     caller.UID,
		AnswerTime: s.now(),
		Answer:     q.OptionText(req.Answer),
	}

	var claimed bool
	var wg errgroup.Group
	wg.Go(func() (err error) {
		claimed, err = s.live.PutResult(ctx, res)
		return err
	})
	wg.Go(func() error {
		return s.live.MarkWinner(ctx)
	})
	if err := wg.Wait(); err != nil {
		// The correctness check already passed; a failure here may leave
		// the winner partially recorded.
		return nil, errors.WriteFailed(err)
	}

	if !claimed {
		return nil, errors.New(errors.CodeAlreadyDecided)
	}

	s.eb.Publish(ctx, domain.EventWinnerDeclared{Result: *res})

	return &SubmitAnswerResponse{
		Winner:    true,
		Submitted: req.Answer,
		Expected:  q.Answer,
	}, nil
}

// Package quiz owns the quiz collection: one document per question, stored
// in Postgres with the option list as jsonb.
package quiz

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizparty/backend/internal/domain"
)

type Config struct {
	DB *pgxpool.Pool
}

type Service struct {
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	return &Service{
		db: c.DB,
	}
}

// optionDoc is the jsonb layout of one option.
type optionDoc struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// LeastPlayed returns the quiz with the lowest play count. Ties break on
// whatever order the store returns, which is all the callers need.
func (s *Service) LeastPlayed(ctx context.Context) (*domain.Quiz, error) {
	const stmt = `
SELECT quiz_id, question, options, answer, played
FROM quiz
ORDER BY played ASC
LIMIT 1;`

	q, err := scanQuiz(s.db.QueryRow(ctx, stmt))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("quiz: collection is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("quiz: least played: %w", err)
	}

	return q, nil
}

// Get fetches one quiz document. A missing document is (nil, nil), not an
// error: to the answer flow absence is just a wrong answer.
func (s *Service) Get(ctx context.Context, quizID string) (*domain.Quiz, error) {
	const stmt = `
SELECT quiz_id, question, options, answer, played
FROM quiz
WHERE quiz_id = $1;`

	q, err := scanQuiz(s.db.QueryRow(ctx, stmt, quizID))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("quiz: get %s: %w", quizID, err)
	}

	return q, nil
}

// IncrementPlayed bumps the play counter inside a transaction so concurrent
// new-game calls never lose an increment.
func (s *Service) IncrementPlayed(ctx context.Context, quizID string) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("quiz: begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const (
		selStmt = `SELECT played FROM quiz WHERE quiz_id = $1 FOR UPDATE;`
		updStmt = `UPDATE quiz SET played = $2 WHERE quiz_id = $1;`
	)

	var played int
	if err = tx.QueryRow(ctx, selStmt, quizID).Scan(&played); err != nil {
		return fmt.Errorf("quiz: read play count: %w", err)
	}

	if _, err = tx.Exec(ctx, updStmt, quizID, played+1); err != nil {
		return fmt.Errorf("quiz: update play count: %w", err)
	}

	return tx.Commit(ctx)
}

// Insert adds a quiz document, ignoring duplicates. Used by the seeder.
func (s *Service) Insert(ctx context.Context, q *domain.Quiz) error {
	const stmt = `
INSERT INTO quiz (quiz_id, question, options, answer, played)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (quiz_id) DO NOTHING;`

	docs := make([]optionDoc, 0, len(q.Options))
	for _, o := range q.Options {
		docs = append(docs, optionDoc{ID: o.ID, Text: o.Text})
	}

	if _, err := s.db.Exec(ctx, stmt, q.QuizID, q.Question, docs, q.Answer, q.Played); err != nil {
		return fmt.Errorf("quiz: insert %s: %w", q.QuizID, err)
	}

	return nil
}

func scanQuiz(row pgx.Row) (*domain.Quiz, error) {
	var (
		q    domain.Quiz
		docs []optionDoc
	)

	if err := row.Scan(&q.QuizID, &q.Question, &docs, &q.Answer, &q.Played); err != nil {
		return nil, err
	}

	q.Options = make([]domain.Option, 0, len(docs))
	for _, d := range docs {
		q.Options = append(q.Options, domain.Option{ID: d.ID, Text: d.Text})
	}

	return &q, nil
}

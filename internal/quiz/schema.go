package quiz

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS quiz (
	quiz_id  TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	options  JSONB NOT NULL DEFAULT '[]',
	answer   TEXT NOT NULL,
	played   INTEGER NOT NULL DEFAULT 0
);`

// Migrate creates the quiz table when missing.
func (s *Service) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("quiz: migrate: %w", err)
	}

	return nil
}

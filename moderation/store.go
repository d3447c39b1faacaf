package moderation

import (
	"context"
	"database/sql"
	"strings"
)

// PGViolationStore persists violations in the violations table.
type PGViolationStore struct {
	DB *sql.DB
}

var _ ViolationStore = (*PGViolationStore)(nil)

func (s *PGViolationStore) CountViolations(ctx context.Context, channel, userID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM violations WHERE channel=$1 AND user_id=$2`, channel, userID).Scan(&n)
	return n, err
}

func (s *PGViolationStore) RecordViolation(ctx context.Context, channel, userID string, words []string, reason string, action Action) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO violations (channel, user_id, offending_words, reason, action) VALUES ($1,$2,$3,$4,$5)`,
		channel, userID, strings.Join(words, ","), reason, string(action))
	return err
}

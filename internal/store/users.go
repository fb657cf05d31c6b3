package store

import (
	"database/sql"
	"fmt"
)

// GetOrCreateUser returns the quota record for userID as of the given
// calendar date, creating a free-plan record on first access. When the
// stored last_reset differs from asOf the counter is reset to zero first;
// the reset is a single conditional UPDATE so concurrent callers cannot
// double-reset or resurrect a stale count.
func (s *Store) GetOrCreateUser(userID, asOf string) (*User, error) {
	_, err := s.conn.Exec(
		`INSERT INTO users (user_id, plan, usage_count, last_reset)
		VALUES (?, 'free', 0, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		userID, asOf,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user record: %w", err)
	}

	if _, err := s.conn.Exec(
		"UPDATE users SET usage_count = 0, last_reset = ? WHERE user_id = ? AND last_reset <> ?",
		asOf, userID, asOf,
	); err != nil {
		return nil, fmt.Errorf("resetting usage: %w", err)
	}

	return s.getUser(userID)
}

// IncrementUsage adds exactly one to the user's daily counter. The update
// is conditional on last_reset so a midnight rollover between quota check
// and increment cannot count against the wrong day.
func (s *Store) IncrementUsage(userID, asOf string) error {
	_, err := s.conn.Exec(
		"UPDATE users SET usage_count = usage_count + 1 WHERE user_id = ? AND last_reset = ?",
		userID, asOf,
	)
	return err
}

// SetPlan updates a user's plan.
func (s *Store) SetPlan(userID, plan string) error {
	res, err := s.conn.Exec("UPDATE users SET plan = ? WHERE user_id = ?", plan, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %s not found", userID)
	}
	return nil
}

func (s *Store) getUser(userID string) (*User, error) {
	row := s.conn.QueryRow(
		"SELECT user_id, plan, usage_count, last_reset, created_at FROM users WHERE user_id = ?",
		userID,
	)
	var u User
	if err := row.Scan(&u.UserID, &u.Plan, &u.UsageCount, &u.LastReset, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %s not found", userID)
		}
		return nil, err
	}
	return &u, nil
}

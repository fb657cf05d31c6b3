package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/credlens/credlens/internal/classify"
)

// CreateThread creates a new conversation thread and returns its ID.
func (s *Store) CreateThread(userID, title string) (string, error) {
	id := uuid.NewString()
	_, err := s.conn.Exec(
		"INSERT INTO threads (id, user_id, title) VALUES (?, ?, ?)",
		id, userID, title,
	)
	if err != nil {
		return "", fmt.Errorf("creating thread: %w", err)
	}
	return id, nil
}

// GetThread returns a thread if it exists and belongs to userID, nil otherwise.
func (s *Store) GetThread(userID, threadID string) (*Thread, error) {
	row := s.conn.QueryRow(
		"SELECT id, user_id, title, created_at FROM threads WHERE id = ? AND user_id = ?",
		threadID, userID,
	)
	var t Thread
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// GetThreadList returns all threads for a user, newest first.
func (s *Store) GetThreadList(userID string) ([]Thread, error) {
	rows, err := s.conn.Query(
		"SELECT id, user_id, title, created_at FROM threads WHERE user_id = ? ORDER BY created_at DESC, id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []Thread
	for rows.Next() {
		var t Thread
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.CreatedAt); err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// RenameThread updates a thread's title.
func (s *Store) RenameThread(userID, threadID, title string) error {
	res, err := s.conn.Exec(
		"UPDATE threads SET title = ? WHERE id = ? AND user_id = ?",
		title, threadID, userID,
	)
	if err != nil {
		return err
	}
	return requireRow(res, threadID)
}

// DeleteThread removes a thread and, via cascade, its messages.
func (s *Store) DeleteThread(userID, threadID string) error {
	res, err := s.conn.Exec(
		"DELETE FROM threads WHERE id = ? AND user_id = ?", threadID, userID,
	)
	if err != nil {
		return err
	}
	return requireRow(res, threadID)
}

// DeleteAllThreads removes every thread for a user.
func (s *Store) DeleteAllThreads(userID string) error {
	_, err := s.conn.Exec("DELETE FROM threads WHERE user_id = ?", userID)
	return err
}

// AppendMessage appends a {submission, verdict} pair to a thread. The
// verdict is serialized verbatim and never mutated afterwards.
func (s *Store) AppendMessage(userID, threadID, userText string, verdict classify.Verdict) error {
	thread, err := s.GetThread(userID, threadID)
	if err != nil {
		return err
	}
	if thread == nil {
		return fmt.Errorf("thread %s not found", threadID)
	}

	data, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("encoding verdict: %w", err)
	}

	_, err = s.conn.Exec(
		"INSERT INTO messages (thread_id, user_text, verdict) VALUES (?, ?, ?)",
		threadID, userText, string(data),
	)
	if err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	return nil
}

// GetThreadMessages returns a thread's messages, oldest first.
func (s *Store) GetThreadMessages(userID, threadID string) ([]Message, error) {
	rows, err := s.conn.Query(
		`SELECT m.id, m.thread_id, m.user_text, m.verdict, m.created_at
		FROM messages m JOIN threads t ON m.thread_id = t.id
		WHERE m.thread_id = ? AND t.user_id = ?
		ORDER BY m.id`,
		threadID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var verdictJSON string
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.UserText, &verdictJSON, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(verdictJSON), &m.Verdict); err != nil {
			return nil, fmt.Errorf("decoding verdict for message %d: %w", m.ID, err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func requireRow(res sql.Result, threadID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("thread %s not found", threadID)
	}
	return nil
}

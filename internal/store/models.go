package store

import "github.com/credlens/credlens/internal/classify"

// User is the per-user quota record. One row per user, mutated on every
// successful pipeline run and reset once per calendar day on first access
// after midnight.
type User struct {
	UserID     string
	Plan       string // "free" or "premium"; unknown values get free's ceiling
	UsageCount int
	LastReset  string // calendar date, YYYY-MM-DD
	CreatedAt  *string
}

// Thread is one conversation: an ordered, append-only sequence of
// submissions and verdicts.
type Thread struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt *string
}

// Message is one {submission, verdict} pair within a thread.
type Message struct {
	ID        int64
	ThreadID  string
	UserText  string
	Verdict   classify.Verdict
	CreatedAt *string
}

// Package quota enforces per-user daily request ceilings.
package quota

import (
	"fmt"
	"time"

	"github.com/credlens/credlens/internal/store"
)

// Daily ceilings per plan. Unknown plan values fall back to the free
// ceiling.
const (
	FreeDailyLimit    = 10
	PremiumDailyLimit = 50
)

// Ledger answers "may this user run another analysis today" against the
// store. The counter resets on the first access of a new calendar day.
type Ledger struct {
	store  *store.Store
	limits map[string]int
	now    func() time.Time
}

// NewLedger creates a ledger. Zero limits take the defaults.
func NewLedger(s *store.Store, freeLimit, premiumLimit int) *Ledger {
	if freeLimit <= 0 {
		freeLimit = FreeDailyLimit
	}
	if premiumLimit <= 0 {
		premiumLimit = PremiumDailyLimit
	}
	return &Ledger{
		store:  s,
		limits: map[string]int{"free": freeLimit, "premium": premiumLimit},
		now:    time.Now,
	}
}

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed bool
	Used    int
	Limit   int
	Plan    string
}

// Check resolves the user's quota record (resetting the counter when the
// day changed) and evaluates the ceiling. A denial never touches the
// counter.
func (l *Ledger) Check(userID string) (Decision, error) {
	u, err := l.store.GetOrCreateUser(userID, l.today())
	if err != nil {
		return Decision{}, fmt.Errorf("resolving quota record: %w", err)
	}

	limit := l.LimitFor(u.Plan)
	return Decision{
		Allowed: u.UsageCount < limit,
		Used:    u.UsageCount,
		Limit:   limit,
		Plan:    u.Plan,
	}, nil
}

// RecordSuccess consumes one unit of quota. Only a pipeline run that
// reaches full success calls this; failed fetches, extractions, and
// classifications stay free.
func (l *Ledger) RecordSuccess(userID string) error {
	return l.store.IncrementUsage(userID, l.today())
}

// LimitFor returns the daily ceiling for a plan name.
func (l *Ledger) LimitFor(plan string) int {
	if limit, ok := l.limits[plan]; ok {
		return limit
	}
	return l.limits["free"]
}

func (l *Ledger) today() string {
	return l.now().Format("2006-01-02")
}

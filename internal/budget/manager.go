// Package budget meters upstream API spend and serves the response
// cache that keeps repeat requests off the wire.
package budget

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/Cassandra/pkg/models"
)

// Clock is injectable so day-boundary behavior is testable.
type Clock func() time.Time

// Manager tracks per-provider daily request counters in Postgres. The
// increment is a single statement, so concurrent pollers can never
// double-spend the last request of the day.
type Manager struct {
	db     *sql.DB
	quotas map[string]int
	clock  Clock
	log    *logrus.Entry
}

func NewManager(db *sql.DB, quotas map[string]int, log *logrus.Logger) *Manager {
	return &Manager{
		db:     db,
		quotas: quotas,
		clock:  time.Now,
		log:    log.WithField("component", "budget"),
	}
}

// SetClock overrides the time source. Test hook.
func (m *Manager) SetClock(c Clock) {
	m.clock = c
}

// day returns the UTC calendar date counters are keyed by. Rollover is
// implicit: a new day keys a fresh row starting at zero.
func (m *Manager) day() string {
	return m.clock().UTC().Format("2006-01-02")
}

// Reserve consumes one request from the provider's daily budget.
// Returns ErrQuotaExhausted without incrementing once the limit is hit.
func (m *Manager) Reserve(ctx context.Context, provider string) error {
	quota, ok := m.quotas[provider]
	if !ok || quota <= 0 {
		return fmt.Errorf("budget: unknown provider %q", provider)
	}

	// Guarded upsert: the increment and the limit check are one
	// statement, so two pollers cannot both take the final slot.
	query := `
		INSERT INTO api_request_counters (provider, day, used, last_request_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (provider, day)
		DO UPDATE SET used = api_request_counters.used + 1, last_request_at = NOW()
		WHERE api_request_counters.used < $3
		RETURNING used
	`

	var used int
	err := m.db.QueryRowContext(ctx, query, provider, m.day(), quota).Scan(&used)
	if err == sql.ErrNoRows {
		m.log.WithFields(logrus.Fields{"provider": provider, "quota": quota}).Warn("daily quota exhausted")
		return ErrQuotaExhausted
	}
	if err != nil {
		return fmt.Errorf("reserve request for %s: %w", provider, err)
	}

	if remaining := quota - used; remaining <= quota/10 {
		m.log.WithFields(logrus.Fields{"provider": provider, "remaining": remaining}).Warn("quota running low")
	}
	return nil
}

// Remaining reports how much budget the provider has left today.
func (m *Manager) Remaining(ctx context.Context, provider string) (int, error) {
	quota, ok := m.quotas[provider]
	if !ok {
		return 0, fmt.Errorf("budget: unknown provider %q", provider)
	}

	var used int
	err := m.db.QueryRowContext(ctx,
		`SELECT used FROM api_request_counters WHERE provider = $1 AND day = $2`,
		provider, m.day()).Scan(&used)
	if err == sql.ErrNoRows {
		return quota, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter for %s: %w", provider, err)
	}

	remaining := quota - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Stats returns the full counter snapshot for a provider.
func (m *Manager) Stats(ctx context.Context, provider string) (models.QuotaStats, error) {
	quota := m.quotas[provider]
	stats := models.QuotaStats{
		APIName:       provider,
		QuotaLimit:    quota,
		Remaining:     quota,
		LastResetDate: m.day(),
	}

	var used int
	var lastRequest sql.NullTime
	err := m.db.QueryRowContext(ctx,
		`SELECT used, last_request_at FROM api_request_counters WHERE provider = $1 AND day = $2`,
		provider, m.day()).Scan(&used, &lastRequest)
	if err == sql.ErrNoRows {
		return stats, nil
	}
	if err != nil {
		return models.QuotaStats{}, fmt.Errorf("read counter for %s: %w", provider, err)
	}

	stats.RequestCount = used
	stats.Remaining = quota - used
	if stats.Remaining < 0 {
		stats.Remaining = 0
	}
	if lastRequest.Valid {
		t := lastRequest.Time
		stats.LastRequestTime = &t
	}
	return stats, nil
}

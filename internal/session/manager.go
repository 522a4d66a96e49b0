package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/admin-dashboard/internal/core/events"
	"github.com/frahmantamala/admin-dashboard/internal/observability"
)

const (
	ReasonCreationRate   = "creation_rate"
	ReasonActiveSessions = "active_sessions"
)

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Options struct {
	MaxConcurrent               int
	RetentionDays               int
	SuspiciousCreationThreshold int
	SuspiciousActiveThreshold   int
}

func (o *Options) applyDefaults() {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 5
	}
	if o.RetentionDays <= 0 {
		o.RetentionDays = 30
	}
	if o.SuspiciousCreationThreshold <= 0 {
		o.SuspiciousCreationThreshold = 10
	}
	if o.SuspiciousActiveThreshold <= 0 {
		o.SuspiciousActiveThreshold = 5
	}
}

// ActivityReport is an advisory signal; nothing is blocked because of it.
type ActivityReport struct {
	UserID         int64    `json:"user_id"`
	CreatedLast24h int64    `json:"created_last_24h"`
	ActiveSessions int64    `json:"active_sessions"`
	Suspicious     bool     `json:"suspicious"`
	Reasons        []string `json:"reasons,omitempty"`
}

// Manager is the housekeeping layer over a Store. Every operation is safe to
// repeat and to run concurrently with itself.
type Manager struct {
	store   Store
	stats   StatsSource
	events  EventPublisher
	metrics *observability.Metrics
	logger  *slog.Logger
	opts    Options
	now     func() time.Time
}

type ManagerDeps struct {
	Store   Store
	Stats   StatsSource
	Events  EventPublisher
	Metrics *observability.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

func NewManager(deps ManagerDeps, opts Options) *Manager {
	opts.applyDefaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Manager{
		store:   deps.Store,
		stats:   deps.Stats,
		events:  deps.Events,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		opts:    opts,
		now:     deps.Now,
	}
}

func (m *Manager) Options() Options {
	return m.opts
}

func (m *Manager) CountActive(ctx context.Context, userID int64) (int64, error) {
	return m.store.CountActiveForUser(ctx, userID)
}

// ListActive returns the user's valid sessions, most recently accessed first.
func (m *Manager) ListActive(ctx context.Context, userID int64) ([]*Session, error) {
	return m.store.ListActiveForUser(ctx, userID)
}

func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := m.store.CleanupExpired(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "session cleanup failed", "error", err)
		return 0, err
	}
	m.metrics.RecordHousekeeping("cleanup_expired", n)
	m.logger.InfoContext(ctx, "expired sessions cleaned up", "count", n)
	return n, nil
}

// PurgeOld uses the configured retention when retentionDays is not positive.
func (m *Manager) PurgeOld(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = m.opts.RetentionDays
	}
	n, err := m.store.PurgeOld(ctx, retentionDays)
	if err != nil {
		m.logger.ErrorContext(ctx, "session purge failed", "error", err)
		return 0, err
	}
	m.metrics.RecordHousekeeping("purge_old", n)
	m.logger.InfoContext(ctx, "old sessions purged", "count", n, "retention_days", retentionDays)
	return n, nil
}

// Extend pushes a valid session's expiry to at least now+hours. It returns
// nil when the session is unknown, expired or invalidated.
func (m *Manager) Extend(ctx context.Context, sessionID string, hours int) (*Session, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("extend hours must be positive, got %d", hours)
	}
	return m.store.Extend(ctx, sessionID, time.Duration(hours)*time.Hour)
}

// EnforceConcurrencyLimit invalidates the least recently accessed sessions
// beyond limit. This is check-then-act: two concurrent logins may briefly
// exceed the cap until the next call.
func (m *Manager) EnforceConcurrencyLimit(ctx context.Context, userID int64, limit int) (int64, error) {
	if limit <= 0 {
		limit = m.opts.MaxConcurrent
	}
	n, err := m.store.InvalidateOldest(ctx, userID, limit)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.metrics.RecordSessionsInvalidated("concurrency_limit", n)
		m.logger.InfoContext(ctx, "session concurrency limit enforced", "user_id", userID, "evicted", n, "limit", limit)
		m.publish(ctx, events.NewSessionInvalidatedEvent(userID, n, "concurrency_limit"))
	}
	return n, nil
}

func (m *Manager) ForceLogout(ctx context.Context, userID int64) (int64, error) {
	n, err := m.store.InvalidateAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	m.metrics.RecordSessionsInvalidated("force_logout", n)
	m.logger.InfoContext(ctx, "user force logged out", "user_id", userID, "sessions", n)
	m.publish(ctx, events.NewAuthEvent(events.EventTypeForceLogout, map[string]interface{}{
		"user_id": userID,
		"count":   n,
	}))
	return n, nil
}

// RevokeSession invalidates one of userID's sessions by lookup id.
func (m *Manager) RevokeSession(ctx context.Context, userID int64, sessionID string) (bool, error) {
	ok, err := m.store.InvalidateByID(ctx, userID, sessionID)
	if err != nil {
		return false, err
	}
	if ok {
		m.metrics.RecordSessionsInvalidated("revoked", 1)
		m.publish(ctx, events.NewSessionInvalidatedEvent(userID, 1, "revoked"))
	}
	return ok, nil
}

// DetectSuspiciousActivity flags a user whose session creations in the last
// 24 hours or whose concurrently active sessions exceed the thresholds.
func (m *Manager) DetectSuspiciousActivity(ctx context.Context, userID int64) (*ActivityReport, error) {
	created, err := m.store.CountCreatedSince(ctx, userID, m.now().UTC().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	active, err := m.store.CountActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &ActivityReport{UserID: userID, CreatedLast24h: created, ActiveSessions: active}
	if created > int64(m.opts.SuspiciousCreationThreshold) {
		report.Reasons = append(report.Reasons, ReasonCreationRate)
	}
	if active > int64(m.opts.SuspiciousActiveThreshold) {
		report.Reasons = append(report.Reasons, ReasonActiveSessions)
	}
	report.Suspicious = len(report.Reasons) > 0

	if report.Suspicious {
		m.logger.WarnContext(ctx, "suspicious session activity",
			"user_id", userID,
			"created_last_24h", created,
			"active_sessions", active,
			"reasons", report.Reasons)
		m.publish(ctx, events.NewSuspiciousActivityEvent(userID, created, active, report.Reasons))
	}
	return report, nil
}

func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	if m.stats == nil {
		return nil, fmt.Errorf("session stats source not configured")
	}
	stats, err := m.stats.Stats(ctx)
	if err != nil {
		return nil, err
	}
	m.metrics.SetActiveSessions(stats.ActiveSessions)
	return stats, nil
}

func (m *Manager) publish(ctx context.Context, ev events.Event) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(ctx, ev); err != nil {
		m.logger.WarnContext(ctx, "event publish failed", "event_type", ev.EventType(), "error", err)
	}
}

package session

import (
	"context"
	"time"

	datamodel "github.com/frahmantamala/admin-dashboard/internal/core/datamodel/session"
)

// Session backs one opaque bearer value. SessionID is the public lookup id;
// the bearer secret itself is never stored, only its TokenHash.
type Session struct {
	ID           int64     `json:"-"`
	SessionID    string    `json:"session_id"`
	UserID       int64     `json:"-"`
	TokenHash    string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastAccessed time.Time `json:"last_accessed"`
	IsActive     bool      `json:"is_active"`
	UserAgent    string    `json:"user_agent,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
}

// Valid reports whether the session can authenticate a request at now.
func (s *Session) Valid(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}

func (s *Session) ToDataModel() *datamodel.Session {
	return &datamodel.Session{
		ID:           s.ID,
		SessionID:    s.SessionID,
		UserID:       s.UserID,
		TokenHash:    s.TokenHash,
		CreatedAt:    s.CreatedAt,
		ExpiresAt:    s.ExpiresAt,
		LastAccessed: s.LastAccessed,
		IsActive:     s.IsActive,
		UserAgent:    s.UserAgent,
		IPAddress:    s.IPAddress,
	}
}

func FromDataModel(m *datamodel.Session) *Session {
	return &Session{
		ID:           m.ID,
		SessionID:    m.SessionID,
		UserID:       m.UserID,
		TokenHash:    m.TokenHash,
		CreatedAt:    m.CreatedAt,
		ExpiresAt:    m.ExpiresAt,
		LastAccessed: m.LastAccessed,
		IsActive:     m.IsActive,
		UserAgent:    m.UserAgent,
		IPAddress:    m.IPAddress,
	}
}

// NewSession describes a session to be issued.
type NewSession struct {
	UserID    int64
	TTL       time.Duration
	UserAgent string
	IPAddress string
}

// Store persists sessions. Every method evaluates validity against the
// current time; nothing is cached. Expected misses return nil/false with a
// nil error; errors are reserved for persistence failures.
type Store interface {
	// Create returns the bearer value to hand to the client.
	Create(ctx context.Context, in NewSession) (string, *Session, error)
	// FindActive resolves a bearer value and refreshes last_accessed in the
	// same transaction.
	FindActive(ctx context.Context, token string) (*Session, error)
	Invalidate(ctx context.Context, token string) (bool, error)
	InvalidateByID(ctx context.Context, userID int64, sessionID string) (bool, error)
	InvalidateAllForUser(ctx context.Context, userID int64) (int64, error)
	// InvalidateOldest keeps the keep most recently accessed valid sessions
	// and invalidates the rest.
	InvalidateOldest(ctx context.Context, userID int64, keep int) (int64, error)
	CountActiveForUser(ctx context.Context, userID int64) (int64, error)
	ListActiveForUser(ctx context.Context, userID int64) ([]*Session, error)
	CountCreatedSince(ctx context.Context, userID int64, since time.Time) (int64, error)
	Extend(ctx context.Context, sessionID string, d time.Duration) (*Session, error)
	CleanupExpired(ctx context.Context) (int64, error)
	PurgeOld(ctx context.Context, retentionDays int) (int64, error)
}

// Stats are dashboard-wide session counters.
type Stats struct {
	ActiveSessions int64 `db:"active_sessions" json:"active_sessions"`
	ActiveUsers    int64 `db:"active_users" json:"active_users"`
	CreatedLast24h int64 `db:"created_last_24h" json:"created_last_24h"`
	InactiveRows   int64 `db:"inactive_rows" json:"inactive_rows"`
}

type StatsSource interface {
	Stats(ctx context.Context) (*Stats, error)
}

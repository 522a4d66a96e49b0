package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	datamodel "github.com/frahmantamala/admin-dashboard/internal/core/datamodel/session"
	"github.com/frahmantamala/admin-dashboard/internal/session"
	"gorm.io/gorm"
)

const activeCond = "is_active = ? AND expires_at > ?"

type SessionStore struct {
	db  *gorm.DB
	now func() time.Time
}

type Option func(*SessionStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) {
		s.now = now
	}
}

func NewSessionStore(db *gorm.DB, opts ...Option) *SessionStore {
	s := &SessionStore{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) clock() time.Time {
	return s.now().UTC()
}

func (s *SessionStore) Create(ctx context.Context, in session.NewSession) (string, *session.Session, error) {
	if in.TTL <= 0 {
		return "", nil, fmt.Errorf("session ttl must be positive, got %s", in.TTL)
	}
	cred, err := session.GenerateCredential()
	if err != nil {
		return "", nil, err
	}

	now := s.clock()
	row := &datamodel.Session{
		SessionID:    cred.SessionID,
		UserID:       in.UserID,
		TokenHash:    cred.TokenHash,
		CreatedAt:    now,
		ExpiresAt:    now.Add(in.TTL),
		LastAccessed: now,
		IsActive:     true,
		UserAgent:    in.UserAgent,
		IPAddress:    in.IPAddress,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return "", nil, fmt.Errorf("insert session: %w", err)
	}
	return cred.Token, session.FromDataModel(row), nil
}

// FindActive loads the row by lookup id, verifies the secret, then bumps
// last_accessed with a conditional update so a concurrent invalidation
// between the read and the write is observed as a miss.
func (s *SessionStore) FindActive(ctx context.Context, token string) (*session.Session, error) {
	sessionID, secret, ok := session.ParseToken(token)
	if !ok {
		return nil, nil
	}

	var found *session.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock()

		var row datamodel.Session
		err := tx.Where("session_id = ? AND "+activeCond, sessionID, true, now).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !session.VerifySecret(secret, row.TokenHash) {
			return nil
		}

		res := tx.Model(&datamodel.Session{}).
			Where("id = ? AND "+activeCond, row.ID, true, now).
			Update("last_accessed", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		row.LastAccessed = now
		found = session.FromDataModel(&row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find active session: %w", err)
	}
	return found, nil
}

func (s *SessionStore) Invalidate(ctx context.Context, token string) (bool, error) {
	sessionID, secret, ok := session.ParseToken(token)
	if !ok {
		return false, nil
	}

	var invalidated bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row datamodel.Session
		err := tx.Where("session_id = ? AND is_active = ?", sessionID, true).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !session.VerifySecret(secret, row.TokenHash) {
			return nil
		}

		res := tx.Model(&datamodel.Session{}).
			Where("id = ? AND is_active = ?", row.ID, true).
			Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		invalidated = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("invalidate session: %w", err)
	}
	return invalidated, nil
}

func (s *SessionStore) InvalidateByID(ctx context.Context, userID int64, sessionID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&datamodel.Session{}).
		Where("session_id = ? AND user_id = ? AND is_active = ?", sessionID, userID, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, fmt.Errorf("invalidate session %s: %w", sessionID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *SessionStore) InvalidateAllForUser(ctx context.Context, userID int64) (int64, error) {
	res := s.db.WithContext(ctx).Model(&datamodel.Session{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("invalidate sessions for user %d: %w", userID, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *SessionStore) InvalidateOldest(ctx context.Context, userID int64, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	var evicted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		err := tx.Model(&datamodel.Session{}).
			Where("user_id = ? AND "+activeCond, userID, true, s.clock()).
			Order("last_accessed DESC").
			Order("id DESC").
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		if len(ids) <= keep {
			return nil
		}

		res := tx.Model(&datamodel.Session{}).
			Where("id IN ? AND is_active = ?", ids[keep:], true).
			Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		evicted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("evict sessions for user %d: %w", userID, err)
	}
	return evicted, nil
}

func (s *SessionStore) CountActiveForUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&datamodel.Session{}).
		Where("user_id = ? AND "+activeCond, userID, true, s.clock()).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count sessions for user %d: %w", userID, err)
	}
	return n, nil
}

func (s *SessionStore) ListActiveForUser(ctx context.Context, userID int64) ([]*session.Session, error) {
	var rows []*datamodel.Session
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND "+activeCond, userID, true, s.clock()).
		Order("last_accessed DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions for user %d: %w", userID, err)
	}

	out := make([]*session.Session, len(rows))
	for i, r := range rows {
		out[i] = session.FromDataModel(r)
	}
	return out, nil
}

func (s *SessionStore) CountCreatedSince(ctx context.Context, userID int64, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&datamodel.Session{}).
		Where("user_id = ? AND created_at > ?", userID, since.UTC()).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count recent sessions for user %d: %w", userID, err)
	}
	return n, nil
}

// Extend slides the expiry to now+d. An expiry already later than that is kept.
func (s *SessionStore) Extend(ctx context.Context, sessionID string, d time.Duration) (*session.Session, error) {
	var extended *session.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock()

		var row datamodel.Session
		err := tx.Where("session_id = ? AND "+activeCond, sessionID, true, now).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		expiresAt := now.Add(d)
		if row.ExpiresAt.After(expiresAt) {
			expiresAt = row.ExpiresAt
		}

		res := tx.Model(&datamodel.Session{}).
			Where("id = ? AND "+activeCond, row.ID, true, now).
			Updates(map[string]interface{}{
				"expires_at":    expiresAt,
				"last_accessed": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		row.ExpiresAt = expiresAt
		row.LastAccessed = now
		extended = session.FromDataModel(&row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extend session: %w", err)
	}
	return extended, nil
}

// CleanupExpired marks expired sessions inactive. Rows are kept for PurgeOld.
func (s *SessionStore) CleanupExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&datamodel.Session{}).
		Where("is_active = ? AND expires_at < ?", true, s.clock()).
		Update("is_active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// PurgeOld hard-deletes inactive rows created before the retention window.
func (s *SessionStore) PurgeOld(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 1 {
		return 0, fmt.Errorf("retention must be at least one day, got %d", retentionDays)
	}
	cutoff := s.clock().AddDate(0, 0, -retentionDays)

	res := s.db.WithContext(ctx).
		Where("is_active = ? AND created_at < ?", false, cutoff).
		Delete(&datamodel.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge old sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

package user

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/frahmantamala/admin-dashboard/internal"
	"github.com/frahmantamala/admin-dashboard/internal/core/events"
	"github.com/frahmantamala/admin-dashboard/internal/core/rbac"
	"github.com/frahmantamala/admin-dashboard/internal/core/user"
)

type Service struct {
	repo     Repository
	hasher   PasswordHasher
	sessions SessionInvalidator
	events   EventPublisher
	logger   *slog.Logger

	passwordMinLength int
}

func NewService(repo Repository, hasher PasswordHasher, sessions SessionInvalidator, bus EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		hasher:   hasher,
		sessions: sessions,
		events:   bus,
		logger:   logger,

		passwordMinLength: DefaultPasswordMinLength,
	}
}

// WithPasswordMinLength sets the shortest password Register and
// ChangePassword accept. Values below 1 keep the default.
func (s *Service) WithPasswordMinLength(n int) *Service {
	if n > 0 {
		s.passwordMinLength = n
	}
	return s
}

// Register creates an active account. Role defaults to customer.
func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*user.User, error) {
	dto.Normalize()
	if verr := dto.Validate(s.passwordMinLength); verr != nil {
		return nil, verr
	}

	role := rbac.RoleCustomer
	if dto.Role != "" {
		role, _ = rbac.ParseRole(dto.Role)
	}

	taken, err := s.repo.ExistsByUsername(ctx, dto.Username)
	if err != nil {
		return nil, internal.NewInternalError("Internal server error", err)
	}
	if taken {
		return nil, internal.ErrUsernameTaken
	}
	taken, err = s.repo.ExistsByEmail(ctx, dto.Email)
	if err != nil {
		return nil, internal.NewInternalError("Internal server error", err)
	}
	if taken {
		return nil, internal.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(dto.Password)
	if err != nil {
		return nil, internal.NewInternalError("Internal server error", err)
	}

	u := &user.User{
		UserID:       uuid.NewString(),
		Username:     dto.Username,
		Email:        dto.Email,
		PasswordHash: hash,
		FullName:     dto.FullName,
		Role:         role,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, internal.NewInternalError("Internal server error", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", u.UserID, "username", u.Username, "role", u.Role)
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*user.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("Internal server error", err)
	}
	if u == nil {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}

func (s *Service) GetByUserID(ctx context.Context, userID string) (*user.User, error) {
	u, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, internal.NewInternalError("Internal server error", err)
	}
	if u == nil {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}

// ChangePassword verifies the current password, stores the new hash and
// signs the user out everywhere.
func (s *Service) ChangePassword(ctx context.Context, id int64, dto ChangePasswordDTO) error {
	if verr := dto.Validate(s.passwordMinLength); verr != nil {
		return verr
	}
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(dto.OldPassword, u.PasswordHash) {
		s.logger.WarnContext(ctx, "password change rejected", "user_id", u.UserID, "reason", "invalid_password")
		return internal.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(dto.NewPassword)
	if err != nil {
		return internal.NewInternalError("Internal server error", err)
	}
	if _, err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return internal.NewInternalError("Internal server error", err)
	}

	n := s.invalidateAll(ctx, u)
	s.logger.InfoContext(ctx, "password changed", "user_id", u.UserID, "sessions_invalidated", n)
	s.publish(ctx, events.NewAuthEvent(events.EventTypePasswordChanged, map[string]interface{}{"user_id": u.UserID}))
	return nil
}

// Deactivate is a soft delete. Outstanding bearer tokens stop resolving
// because every resolution re-checks is_active.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.repo.SetActive(ctx, id, false); err != nil {
		return internal.NewInternalError("Internal server error", err)
	}

	n := s.invalidateAll(ctx, u)
	s.logger.InfoContext(ctx, "user deactivated", "user_id", u.UserID, "sessions_invalidated", n)
	s.publish(ctx, events.NewAuthEvent(events.EventTypeUserDeactivated, map[string]interface{}{"user_id": u.UserID}))
	return nil
}

func (s *Service) Activate(ctx context.Context, id int64) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.repo.SetActive(ctx, id, true); err != nil {
		return internal.NewInternalError("Internal server error", err)
	}
	s.logger.InfoContext(ctx, "user activated", "user_id", u.UserID)
	return nil
}

// ChangeRole invalidates the user's sessions so the new permission set
// applies from the next login.
func (s *Service) ChangeRole(ctx context.Context, id int64, role string) (*user.User, error) {
	r, ok := rbac.ParseRole(role)
	if !ok {
		return nil, internal.ErrInvalidRole
	}
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role == r {
		return u, nil
	}
	if _, err := s.repo.UpdateRole(ctx, id, r); err != nil {
		return nil, internal.NewInternalError("Internal server error", err)
	}

	previous := u.Role
	u.Role = r
	n := s.invalidateAll(ctx, u)
	s.logger.InfoContext(ctx, "user role changed",
		"user_id", u.UserID,
		"from", previous,
		"to", r,
		"sessions_invalidated", n)
	s.publish(ctx, events.NewAuthEvent(events.EventTypeRoleChanged, map[string]interface{}{
		"user_id": u.UserID,
		"from":    string(previous),
		"to":      string(r),
	}))
	return u, nil
}

func (s *Service) invalidateAll(ctx context.Context, u *user.User) int64 {
	if s.sessions == nil {
		return 0
	}
	n, err := s.sessions.InvalidateAllForUser(ctx, u.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to invalidate user sessions", "user_id", u.UserID, "error", err)
		return 0
	}
	return n
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "event publish failed", "event_type", ev.EventType(), "error", err)
	}
}

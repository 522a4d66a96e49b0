package auth

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/frahmantamala/admin-dashboard/internal/core/events"
	"github.com/frahmantamala/admin-dashboard/internal/core/user"
	"github.com/frahmantamala/admin-dashboard/internal/observability"
	"github.com/frahmantamala/admin-dashboard/internal/session"
)

const (
	DefaultSessionTTL    = 24 * time.Hour
	DefaultRememberMeTTL = 30 * 24 * time.Hour
)

// UserRepository looks up accounts. Each Get returns (nil, nil) when no row
// matches.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
	GetByUserID(ctx context.Context, userID string) (*user.User, error)
	GetByUsername(ctx context.Context, username string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}

type SessionHousekeeper interface {
	EnforceConcurrencyLimit(ctx context.Context, userID int64, limit int) (int64, error)
	DetectSuspiciousActivity(ctx context.Context, userID int64) (*session.ActivityReport, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Deps struct {
	Users        UserRepository
	Sessions     session.Store
	Housekeeping SessionHousekeeper
	Hasher       Hasher
	Codec        TokenCodec
	Events       EventPublisher
	Metrics      *observability.Metrics
	Logger       *slog.Logger
	Now          func() time.Time
}

type Options struct {
	SessionTTL      time.Duration
	RememberMeTTL   time.Duration
	MaxConcurrent   int
	EnforceOnCreate bool
}

type SessionOptions struct {
	RememberMe bool
	UserAgent  string
	IPAddress  string
}

// Credentials are the raw values a request presented. Either may be empty.
type Credentials struct {
	SessionToken string
	BearerToken  string
}

type Service struct {
	users        UserRepository
	sessions     session.Store
	housekeeping SessionHousekeeper
	hasher       Hasher
	codec        TokenCodec
	events       EventPublisher
	metrics      *observability.Metrics
	logger       *slog.Logger
	opts         Options
	now          func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewService(deps Deps, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.RememberMeTTL <= 0 {
		opts.RememberMeTTL = DefaultRememberMeTTL
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Hasher == nil {
		deps.Hasher = NewBcryptHasher(0)
	}
	return &Service{
		users:        deps.Users,
		sessions:     deps.Sessions,
		housekeeping: deps.Housekeeping,
		hasher:       deps.Hasher,
		codec:        deps.Codec,
		events:       deps.Events,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		opts:         opts,
		now:          deps.Now,
	}
}

func (s *Service) SessionTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return s.opts.RememberMeTTL
	}
	return s.opts.SessionTTL
}

// AuthenticateUser checks a password against the account named by
// identifier, tried as public user id, then username, then email. A nil user
// with a nil error means the credentials were rejected; callers must not
// reveal which part was wrong.
func (s *Service) AuthenticateUser(ctx context.Context, identifier, password string) (*user.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		s.loginFailed(ctx, identifier, "missing_credentials")
		return nil, nil
	}

	u, err := s.lookup(ctx, identifier)
	if err != nil {
		s.metrics.RecordLogin("error")
		s.logger.ErrorContext(ctx, "user lookup failed", "identifier", identifier, "error", err)
		return nil, err
	}

	if u == nil {
		s.hasher.Verify(password, s.dummy())
		s.loginFailed(ctx, identifier, "unknown_identifier")
		return nil, nil
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		s.loginFailed(ctx, identifier, "invalid_password")
		return nil, nil
	}

	if !u.IsActive {
		s.loginFailed(ctx, identifier, "inactive")
		return nil, nil
	}

	at := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, u.ID, at); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login", "user_id", u.UserID, "error", err)
	} else {
		u.LastLogin = &at
	}

	s.metrics.RecordLogin("success")
	s.logger.InfoContext(ctx, "user authenticated", "user_id", u.UserID, "username", u.Username)
	s.publish(ctx, events.NewLoginSucceededEvent(u.UserID))
	return u, nil
}

func (s *Service) lookup(ctx context.Context, identifier string) (*user.User, error) {
	finders := []func(context.Context, string) (*user.User, error){
		s.users.GetByUserID,
		s.users.GetByUsername,
		s.users.GetByEmail,
	}
	for _, find := range finders {
		u, err := find(ctx, identifier)
		if err != nil {
			return nil, err
		}
		if u != nil {
			return u, nil
		}
	}
	return nil, nil
}

// dummy is a throwaway hash so unknown identifiers pay the same bcrypt cost
// as a wrong password.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("admin-dashboard-timing-equaliser-1")
		if err != nil {
			s.logger.Warn("failed to build timing hash", "error", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func (s *Service) loginFailed(ctx context.Context, identifier, reason string) {
	s.metrics.RecordLogin(reason)
	s.logger.WarnContext(ctx, "authentication failed", "identifier", identifier, "reason", reason)
	s.publish(ctx, events.NewLoginFailedEvent(identifier, reason))
}

// CreateUserSession issues a session bearer value for u.
func (s *Service) CreateUserSession(ctx context.Context, u *user.User, opts SessionOptions) (string, error) {
	token, _, err := s.IssueSession(ctx, u, opts)
	return token, err
}

// IssueSession is CreateUserSession returning the stored session as well, so
// callers can report its expiry. Concurrency enforcement and
// suspicious-activity checks run afterwards; their failures are logged and do
// not fail the login.
func (s *Service) IssueSession(ctx context.Context, u *user.User, opts SessionOptions) (string, *session.Session, error) {
	token, sess, err := s.sessions.Create(ctx, session.NewSession{
		UserID:    u.ID,
		TTL:       s.SessionTTL(opts.RememberMe),
		UserAgent: opts.UserAgent,
		IPAddress: opts.IPAddress,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "session create failed", "user_id", u.UserID, "error", err)
		return "", nil, err
	}

	s.metrics.RecordSessionCreated()
	s.logger.InfoContext(ctx, "session created",
		"user_id", u.UserID,
		"session_id", sess.SessionID,
		"expires_at", sess.ExpiresAt)
	s.publish(ctx, events.NewSessionCreatedEvent(u.ID, sess.SessionID))

	if s.housekeeping != nil {
		if s.opts.EnforceOnCreate {
			if _, err := s.housekeeping.EnforceConcurrencyLimit(ctx, u.ID, s.opts.MaxConcurrent); err != nil {
				s.logger.WarnContext(ctx, "session limit enforcement failed", "user_id", u.UserID, "error", err)
			}
		}
		if _, err := s.housekeeping.DetectSuspiciousActivity(ctx, u.ID); err != nil {
			s.logger.WarnContext(ctx, "suspicious activity check failed", "user_id", u.UserID, "error", err)
		}
	}

	return token, sess, nil
}

// GetUserFromSession resolves a session bearer value to its owner. Any miss,
// including an owner that no longer exists or is inactive, yields nil.
func (s *Service) GetUserFromSession(ctx context.Context, token string) (*user.AuthenticatedUser, error) {
	if token == "" {
		return nil, nil
	}
	sess, err := s.sessions.FindActive(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		s.metrics.RecordResolution(string(user.AuthMethodSession), "miss")
		return nil, nil
	}

	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive {
		s.metrics.RecordResolution(string(user.AuthMethodSession), "inactive")
		return nil, nil
	}

	s.metrics.RecordResolution(string(user.AuthMethodSession), "hit")
	return user.NewAuthenticatedUser(u, sess.SessionID, user.AuthMethodSession), nil
}

func (s *Service) CreateJWTToken(u *user.User) (string, error) {
	token, _, err := s.IssueJWT(u)
	return token, err
}

// IssueJWT is CreateJWTToken that also reports the expiry.
func (s *Service) IssueJWT(u *user.User) (string, time.Time, error) {
	return s.codec.Encode(u)
}

// GetUserFromJWT re-loads the token's subject on every call. Role and
// permissions come from the stored account, not from the token.
func (s *Service) GetUserFromJWT(ctx context.Context, token string) (*user.AuthenticatedUser, error) {
	claims := s.codec.Decode(token)
	if claims == nil {
		s.metrics.RecordResolution(string(user.AuthMethodJWT), "miss")
		return nil, nil
	}

	u, err := s.users.GetByUserID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive {
		s.metrics.RecordResolution(string(user.AuthMethodJWT), "inactive")
		return nil, nil
	}

	s.metrics.RecordResolution(string(user.AuthMethodJWT), "hit")
	return user.NewAuthenticatedUser(u, "", user.AuthMethodJWT), nil
}

func (s *Service) InvalidateSession(ctx context.Context, token string) (bool, error) {
	ok, err := s.sessions.Invalidate(ctx, token)
	if err != nil {
		return false, err
	}
	if ok {
		s.metrics.RecordSessionsInvalidated("logout", 1)
	}
	return ok, nil
}

func (s *Service) InvalidateAllUserSessions(ctx context.Context, userID int64) (int64, error) {
	n, err := s.sessions.InvalidateAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.metrics.RecordSessionsInvalidated("all", n)
		s.logger.InfoContext(ctx, "all user sessions invalidated", "user_id", userID, "count", n)
		s.publish(ctx, events.NewSessionInvalidatedEvent(userID, n, "all"))
	}
	return n, nil
}

// ResolveRequest tries the session cookie, then the bearer value as a
// session, then the bearer value as a JWT. The first success wins.
func (s *Service) ResolveRequest(ctx context.Context, creds Credentials) (*user.AuthenticatedUser, error) {
	if creds.SessionToken != "" {
		p, err := s.GetUserFromSession(ctx, creds.SessionToken)
		if err != nil || p != nil {
			return p, err
		}
	}

	if creds.BearerToken == "" {
		return nil, nil
	}

	if _, _, ok := session.ParseToken(creds.BearerToken); ok {
		p, err := s.GetUserFromSession(ctx, creds.BearerToken)
		if err != nil || p != nil {
			return p, err
		}
	}

	return s.GetUserFromJWT(ctx, creds.BearerToken)
}

// RefreshSession rotates a valid session bearer value. It returns "" when
// token no longer resolves.
func (s *Service) RefreshSession(ctx context.Context, token string, opts SessionOptions) (string, error) {
	next, _, err := s.RotateSession(ctx, token, opts)
	return next, err
}

// RotateSession is RefreshSession returning the replacement session.
func (s *Service) RotateSession(ctx context.Context, token string, opts SessionOptions) (string, *session.Session, error) {
	p, err := s.GetUserFromSession(ctx, token)
	if err != nil || p == nil {
		return "", nil, err
	}

	u, err := s.users.GetByID(ctx, p.ID)
	if err != nil {
		return "", nil, err
	}
	if u == nil {
		return "", nil, nil
	}

	if _, err := s.sessions.Invalidate(ctx, token); err != nil {
		return "", nil, err
	}
	s.metrics.RecordSessionsInvalidated("rotated", 1)

	return s.IssueSession(ctx, u, opts)
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "event publish failed", "event_type", ev.EventType(), "error", err)
	}
}

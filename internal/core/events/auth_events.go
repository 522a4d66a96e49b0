package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeLoginSucceeded     = "auth.login_succeeded"
	EventTypeLoginFailed        = "auth.login_failed"
	EventTypeSessionCreated     = "session.created"
	EventTypeSessionInvalidated = "session.invalidated"
	EventTypeForceLogout        = "session.force_logout"
	EventTypeSuspiciousActivity = "session.suspicious_activity"
	EventTypeUserDeactivated    = "user.deactivated"
	EventTypePasswordChanged    = "user.password_changed"
	EventTypeRoleChanged        = "user.role_changed"
)

// AuthEventTypes lists every event the auth subsystem emits.
func AuthEventTypes() []string {
	return []string{
		EventTypeLoginSucceeded,
		EventTypeLoginFailed,
		EventTypeSessionCreated,
		EventTypeSessionInvalidated,
		EventTypeForceLogout,
		EventTypeSuspiciousActivity,
		EventTypeUserDeactivated,
		EventTypePasswordChanged,
		EventTypeRoleChanged,
	}
}

// NewAuthEvent builds an event. Payloads carry identifiers and counts only,
// never passwords or bearer values.
func NewAuthEvent(eventType string, data map[string]interface{}) BaseEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

func NewLoginFailedEvent(identifier, reason string) BaseEvent {
	return NewAuthEvent(EventTypeLoginFailed, map[string]interface{}{
		"identifier": identifier,
		"reason":     reason,
	})
}

func NewLoginSucceededEvent(userID string) BaseEvent {
	return NewAuthEvent(EventTypeLoginSucceeded, map[string]interface{}{"user_id": userID})
}

func NewSessionCreatedEvent(userID int64, sessionID string) BaseEvent {
	return NewAuthEvent(EventTypeSessionCreated, map[string]interface{}{
		"user_id":    userID,
		"session_id": sessionID,
	})
}

func NewSessionInvalidatedEvent(userID int64, count int64, reason string) BaseEvent {
	return NewAuthEvent(EventTypeSessionInvalidated, map[string]interface{}{
		"user_id": userID,
		"count":   count,
		"reason":  reason,
	})
}

func NewSuspiciousActivityEvent(userID int64, createdLast24h, active int64, reasons []string) BaseEvent {
	return NewAuthEvent(EventTypeSuspiciousActivity, map[string]interface{}{
		"user_id":          userID,
		"created_last_24h": createdLast24h,
		"active_sessions":  active,
		"reasons":          reasons,
	})
}

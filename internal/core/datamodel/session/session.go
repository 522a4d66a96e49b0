package session

import "time"

type Session struct {
	ID           int64     `gorm:"primaryKey"`
	SessionID    string    `gorm:"column:session_id;uniqueIndex;not null"`
	UserID       int64     `gorm:"column:user_id;index;not null"`
	TokenHash    string    `gorm:"column:token_hash;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
	ExpiresAt    time.Time `gorm:"column:expires_at;index;not null"`
	LastAccessed time.Time `gorm:"column:last_accessed;not null"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`
	UserAgent    string    `gorm:"column:user_agent"`
	IPAddress    string    `gorm:"column:ip_address"`
}

func (Session) TableName() string {
	return "user_sessions"
}

package user

import "time"

// User is the persisted account row. Admin status derives from Role; there
// is no is_admin column.
type User struct {
	ID           int64      `gorm:"primaryKey"`
	UserID       string     `gorm:"column:user_id;uniqueIndex;not null"`
	Username     string     `gorm:"column:username;uniqueIndex;not null"`
	Email        string     `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	FullName     *string    `gorm:"column:full_name"`
	Role         string     `gorm:"column:role;not null;default:customer"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	LastLogin    *time.Time `gorm:"column:last_login"`
}

func (User) TableName() string {
	return "users"
}

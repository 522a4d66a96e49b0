package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	datamodel "github.com/frahmantamala/admin-dashboard/internal/core/datamodel/user"
	"github.com/frahmantamala/admin-dashboard/internal/core/rbac"
	"github.com/frahmantamala/admin-dashboard/internal/core/user"
	"gorm.io/gorm"
)

// UserRepository serves both credential checks and account management.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) first(ctx context.Context, column string, value interface{}) (*user.User, error) {
	var row datamodel.User
	err := r.db.WithContext(ctx).Where(column+" = ?", value).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	return user.FromDataModel(&row), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.first(ctx, "id", id)
}

func (r *UserRepository) GetByUserID(ctx context.Context, userID string) (*user.User, error) {
	if userID == "" {
		return nil, nil
	}
	return r.first(ctx, "user_id", userID)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	if username == "" {
		return nil, nil
	}
	return r.first(ctx, "username", username)
}

// GetByEmail matches case-insensitively; emails are stored lower-cased.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	if email == "" {
		return nil, nil
	}
	return r.first(ctx, "email", strings.ToLower(email))
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", username)
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", strings.ToLower(email))
}

func (r *UserRepository) exists(ctx context.Context, column, value string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&datamodel.User{}).Where(column+" = ?", value).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check %s: %w", column, err)
	}
	return n > 0, nil
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	row := u.ToDataModel()
	row.Email = strings.ToLower(row.Email)
	if row.Role == "" {
		row.Role = string(rbac.RoleCustomer)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		// The column default would otherwise win over a false IsActive.
		if !u.IsActive {
			return tx.Model(row).Update("is_active", false).Error
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	*u = *user.FromDataModel(row)
	return nil
}

func (r *UserRepository) update(ctx context.Context, id int64, column string, value interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&datamodel.User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return false, fmt.Errorf("update user %s: %w", column, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.update(ctx, id, "last_login", at.UTC())
	return err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) (bool, error) {
	return r.update(ctx, id, "password_hash", passwordHash)
}

func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	return r.update(ctx, id, "is_active", active)
}

func (r *UserRepository) UpdateRole(ctx context.Context, id int64, role rbac.Role) (bool, error) {
	return r.update(ctx, id, "role", string(role))
}

package user

import (
	"strings"

	"github.com/frahmantamala/admin-dashboard/internal"
	"github.com/frahmantamala/admin-dashboard/internal/core/common/validation"
	"github.com/frahmantamala/admin-dashboard/internal/core/rbac"
)

// DefaultPasswordMinLength applies when security.password_min_length is unset.
const DefaultPasswordMinLength = 5

type RegisterDTO struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name,omitempty"`
	Role     string  `json:"role,omitempty"`
}

func (d *RegisterDTO) Normalize() {
	d.Username = strings.TrimSpace(d.Username)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	if d.FullName != nil {
		name := strings.TrimSpace(*d.FullName)
		d.FullName = &name
	}
}

func (d RegisterDTO) Validate(minPassword int) *internal.AppError {
	v := validation.NewValidator()
	v.Field("username", d.Username).Required().MinLength(3).MaxLength(50).Username()
	v.Field("email", d.Email).Required().MaxLength(255).Email()
	v.Field("password", d.Password).Required().Password(minPassword)
	if d.Role != "" {
		v.Field("role", d.Role).Custom(func(value interface{}) *internal.AppError {
			if _, ok := rbac.ParseRole(value.(string)); !ok {
				return internal.ErrInvalidRole
			}
			return nil
		})
	}
	return v.Validate()
}

type ChangePasswordDTO struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (d ChangePasswordDTO) Validate(minPassword int) *internal.AppError {
	v := validation.NewValidator()
	v.Field("old_password", d.OldPassword).Required()
	v.Field("new_password", d.NewPassword).Required().Password(minPassword)
	return v.Validate()
}

type ChangeRoleDTO struct {
	Role string `json:"role"`
}

func (d ChangeRoleDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("role", d.Role).Required().Custom(func(value interface{}) *internal.AppError {
		if _, ok := rbac.ParseRole(value.(string)); !ok {
			return internal.ErrInvalidRole
		}
		return nil
	})
	return v.Validate()
}

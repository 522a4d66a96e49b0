package auth

import (
	"time"

	"github.com/frahmantamala/admin-dashboard/internal"
	"github.com/frahmantamala/admin-dashboard/internal/core/common/validation"
	"github.com/frahmantamala/admin-dashboard/internal/core/user"
)

// LoginDTO accepts any one of identifier, username or email.
type LoginDTO struct {
	Identifier string `json:"identifier,omitempty"`
	Username   string `json:"username,omitempty"`
	Email      string `json:"email,omitempty"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me,omitempty"`
}

func (d LoginDTO) LoginIdentifier() string {
	switch {
	case d.Identifier != "":
		return d.Identifier
	case d.Username != "":
		return d.Username
	default:
		return d.Email
	}
}

func (d LoginDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("identifier", d.LoginIdentifier()).Required().MaxLength(255)
	v.Field("password", d.Password).Required().MaxLength(72)
	return v.Validate()
}

type LoginResponse struct {
	User                 user.Profile `json:"user"`
	SessionToken         string       `json:"session_token"`
	AccessToken          string       `json:"access_token"`
	TokenType            string       `json:"token_type"`
	ExpiresAt            time.Time    `json:"expires_at"`
	AccessTokenExpiresAt time.Time    `json:"access_token_expires_at"`
}

type RefreshResponse struct {
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type MeResponse struct {
	*user.AuthenticatedUser
	IsAdmin     bool     `json:"is_admin"`
	Permissions []string `json:"permissions"`
}

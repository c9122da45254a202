package types

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserAuth represents the core user entity in the domain.
type UserAuth struct {
	ID        uuid.UUID `json:"id" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"`
	Name      string    `json:"name" example:"Asha Rao"`
	Email     string    `json:"email" example:"asha@example.com"`
	Mobile    string    `json:"mobile,omitempty" example:"9876543210"`
	Password  string    `json:"-"`
	Role      string    `json:"role" example:"user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Claims are the JWT claims issued at login.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type RegisterRequest struct {
	Name     string `json:"name" example:"Asha Rao"`
	Email    string `json:"email" example:"asha@example.com"`
	Mobile   string `json:"mobile" example:"9876543210"`
	Password string `json:"password" example:"s3cret-pass"`
}

type LoginRequest struct {
	Email    string `json:"email" example:"asha@example.com"`
	Password string `json:"password" example:"s3cret-pass"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Success bool      `json:"success"`
	Token   string    `json:"token"`
	User    *UserAuth `json:"user"`
}

package identity

import "time"

// User is a clinic staff account. Accounts are provisioned out of band and
// never modified through the API.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Credentials  string    `json:"credentials"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"-"`
}

// PublicUser is the projection returned to clients.
type PublicUser struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Credentials string `json:"credentials"`
	Role        string `json:"role"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Credentials: u.Credentials,
		Role:        u.Role,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      PublicUser `json:"user"`
}

// NewUser carries the fields needed to provision an account.
type NewUser struct {
	Email       string
	Name        string
	Credentials string
	Role        string
	Password    string
}

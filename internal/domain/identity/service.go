package identity

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/careconnect/clinic/internal/platform/apperr"
	"github.com/careconnect/clinic/internal/platform/auth"
)

// BypassPassword is accepted for any account when the bypass flag is on.
// Local debugging only; config validation refuses it in production.
const BypassPassword = "bypass123"

const invalidCredentials = "Invalid email or password"

const minPasswordLength = 6

// dummyHash keeps unknown-email logins as slow as wrong-password ones.
var (
	dummyHashOnce sync.Once
	dummyHash     string
)

func timingHash() string {
	dummyHashOnce.Do(func() {
		dummyHash, _ = auth.HashPassword("careconnect-timing-equaliser")
	})
	return dummyHash
}

type Service struct {
	users  UserRepository
	tokens *auth.TokenIssuer
	bypass bool
}

func NewService(users UserRepository, tokens *auth.TokenIssuer, allowBypass bool) *Service {
	return &Service{users: users, tokens: tokens, bypass: allowBypass}
}

// Login verifies credentials and issues a token. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, apperr.Unauthorized(invalidCredentials)
	}

	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			auth.CheckPassword(timingHash(), req.Password)
			return nil, apperr.Unauthorized(invalidCredentials)
		}
		return nil, err
	}

	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		if !s.bypass || req.Password != BypassPassword {
			return nil, apperr.Unauthorized(invalidCredentials)
		}
		zerolog.Ctx(ctx).Warn().
			Int64("user_id", u.ID).
			Str("role", u.Role).
			Msg("login accepted through password bypass")
	}

	token, exp, err := s.tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: token, ExpiresAt: exp, User: u.Public()}, nil
}

// Doctors lists every user with the Doctor role, ordered by name.
func (s *Service) Doctors(ctx context.Context) ([]PublicUser, error) {
	users, err := s.users.ListByRole(ctx, auth.RoleDoctor)
	if err != nil {
		return nil, err
	}
	out := make([]PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// CreateUser provisions an account with a bcrypt-hashed password.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Validation("a valid email is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Validation("name is required")
	}
	if !auth.ValidRole(in.Role) {
		return nil, apperr.Validation("role must be one of %s, %s or %s", auth.RoleDoctor, auth.RoleNurse, auth.RolePharmacist)
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLength)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Credentials:  strings.TrimSpace(in.Credentials),
		PasswordHash: hash,
		Role:         in.Role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

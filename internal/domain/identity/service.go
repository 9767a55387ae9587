package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/hospital/hms/internal/platform/auth"
)

const DefaultTokenTTL = time.Hour

// Token is the result of a successful login.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Role        string    `json:"role"`
	DoctorID    *int64    `json:"doctor_id,omitempty"`
	PatientID   *int64    `json:"patient_id,omitempty"`
}

type Service struct {
	users  UserRepository
	jwt    auth.JWTConfig
	ttl    time.Duration
	now    func() time.Time
	cost   int
	logger zerolog.Logger
}

func NewService(users UserRepository, jwt auth.JWTConfig, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{
		users:  users,
		jwt:    jwt,
		ttl:    ttl,
		now:    time.Now,
		cost:   bcrypt.DefaultCost,
		logger: logger,
	}
}

// Login checks username and password and issues a signed access token.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*Token, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn().Str("username", username).Msg("login rejected")
		return nil, ErrInvalidCredentials
	}

	signed, expires, err := s.jwt.Issue(u.AuthContext(), s.ttl, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("role", u.Role).Msg("login")
	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   expires,
		Role:        u.Role,
		DoctorID:    u.DoctorID,
		PatientID:   u.PatientID,
	}, nil
}

// CreateUser hashes password and stores u.
func (s *Service) CreateUser(ctx context.Context, u *User, password string) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidUser)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return s.users.Create(ctx, u)
}

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issue signs an HS256 token for a with the given lifetime.
func (cfg JWTConfig) Issue(a AuthContext, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if len(cfg.SigningKey) == 0 {
		return "", time.Time{}, fmt.Errorf("jwt signing key is not configured")
	}
	expires := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.UserID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role:      a.Role,
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

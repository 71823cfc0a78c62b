package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Verification failure reasons. Handlers branch on these to pick a
// status code, so they are sentinels rather than ad-hoc strings.
var (
	ErrTokenMissing      = errors.New("token is empty")
	ErrSecretMissing     = errors.New("signing secret is not configured")
	ErrUnexpectedSigning = errors.New("unexpected signing method")
	ErrTokenExpired      = errors.New("token is expired")
	ErrTokenInvalid      = errors.New("token is invalid")
	ErrEmptySubject      = errors.New("token has no user id")
)

// UserClaims carries the verified subscriber identity extracted from a
// bearer token.
type UserClaims struct {
	UserID   string `json:"uid,omitempty"`
	Email    string `json:"email,omitempty"`
	UserName string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// VerifyToken parses and validates an HS256 bearer token and returns
// the subscriber claims. Tokens signed with any other method are
// rejected before the signature is checked.
func VerifyToken(tokenString string, secret []byte) (*UserClaims, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}
	if len(secret) == 0 {
		return nil, ErrSecretMissing
	}

	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedSigning, t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUnexpectedSigning):
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedSigning, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.UserID == "" {
		return nil, ErrEmptySubject
	}

	return claims, nil
}

// GenerateToken signs an HS256 token for the given subscriber. Used by
// the auth service that fronts this gateway and by tests.
func GenerateToken(userID, email, userName string, secret []byte, ttl time.Duration) (string, error) {
	claims := &UserClaims{
		UserID:   userID,
		Email:    email,
		UserName: userName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

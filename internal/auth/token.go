package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"certquiz-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors the access tokens minted by the hosted identity provider:
// the subject is the user ID and the display name sits in user_metadata.
type Claims struct {
	jwt.RegisteredClaims
	Email        string       `json:"email,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

type UserMetadata struct {
	Username string `json:"username,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// TokenService verifies bearer tokens and, for local development, mints them.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret, issuer string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Verify validates an HS256 token and returns the identity it carries.
func (s *TokenService) Verify(tokenStr string) (domain.Identity, error) {
	if len(s.secret) == 0 {
		return domain.Identity{}, fmt.Errorf("%w: no signing secret configured", domain.ErrUnauthenticated)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if !token.Valid || claims.Subject == "" {
		return domain.Identity{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}
	return claims.Identity(), nil
}

// Identity derives the display name the same way the web client does:
// username, then full name, then the local part of the email.
func (c *Claims) Identity() domain.Identity {
	name := c.UserMetadata.Username
	if name == "" {
		name = c.UserMetadata.FullName
	}
	if name == "" && c.Email != "" {
		name = strings.SplitN(c.Email, "@", 2)[0]
	}
	if name == "" {
		name = "Anonymous"
	}
	return domain.Identity{UserID: c.Subject, UserName: name, Email: c.Email}
}

// Issue mints a token for who. It is used by the token command to obtain
// credentials without the identity provider.
func (s *TokenService) Issue(who domain.Identity) (string, error) {
	if who.UserID == "" {
		return "", errors.New("issue token: user id is required")
	}
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Email:        who.Email,
		UserMetadata: UserMetadata{Username: who.UserName},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

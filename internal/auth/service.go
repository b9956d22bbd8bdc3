package auth

import (
	"errors"
	"time"

	"github.com/docuhub/portal/internal/identity"
)

// ErrInvalidToken is returned for tokens that fail signature or expiry checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// Service issues and verifies bearer tokens for approved accounts.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService builds a token service signing with secret; tokens live for ttl.
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs an access token for the account.
func (s *Service) Issue(account identity.Account) (string, error) {
	now := s.now()
	return signToken(tokenClaims{
		Subject:  account.ID,
		Email:    account.Email,
		Audience: tokenAudience,
		IssuedAt: now.Unix(),
		Expires:  now.Add(s.ttl).Unix(),
	}, s.secret)
}

// Verify checks the token and returns the account id it was issued for.
func (s *Service) Verify(token string) (string, error) {
	claims, err := parseToken(token, s.secret)
	if err != nil || claims.Subject == "" || claims.Expires <= s.now().Unix() {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

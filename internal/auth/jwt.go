package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ScopeLedgerAdmin is the only scope issued. Every ledger route
// requires it; there are no per-student tokens.
const ScopeLedgerAdmin = "ledger:admin"

// AdminClaims is the payload carried by ledger tokens.
type AdminClaims struct {
	AdminID string `json:"adm"`
	Scope   string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// Signer issues and validates admin token pairs with a single HS256 key.
type Signer struct {
	issuer     string
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewSigner creates a signer for the configured issuer and key.
func NewSigner(issuer, key string, accessTTL, refreshTTL time.Duration) *Signer {
	return &Signer{issuer: issuer, key: []byte(key), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// IssuePair signs an access and refresh token for the admin identity.
// Both carry ScopeLedgerAdmin.
func (s *Signer) IssuePair(adminID string) (TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(s.accessTTL)
	refreshExp := now.Add(s.refreshTTL)

	access, err := s.sign(adminID, now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(adminID, now, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (s *Signer) sign(adminID string, now, exp time.Time) (string, error) {
	claims := AdminClaims{
		AdminID: adminID,
		Scope:   ScopeLedgerAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   adminID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Parse validates signature, method, expiry and issuer and returns the
// claims. Scope checks stay with the caller: the middleware and the
// refresh endpoint both require ScopeLedgerAdmin.
func (s *Signer) Parse(tokenStr string) (AdminClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.key, nil
	})
	if err != nil {
		return AdminClaims{}, err
	}
	claims, ok := parsed.Claims.(*AdminClaims)
	if !ok || !parsed.Valid {
		return AdminClaims{}, errors.New("invalid token")
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return AdminClaims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}

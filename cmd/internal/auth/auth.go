package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrBadToken = errors.New("invalid token")

const (
	useAccess  = "access"
	useRefresh = "refresh"
)

type Claims struct {
	Role     string `json:"role"`
	TokenUse string `json:"use"`
	jwt.RegisteredClaims
}

// TokenPair is the credential pair handed to a client at login.
// Neither token is persisted server-side.
type TokenPair struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

type Authenticator struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthenticator(secret string, accessTTL, refreshTTL time.Duration) *Authenticator {
	return &Authenticator{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// MintPair issues a fresh access/refresh pair for the given account.
func (a *Authenticator) MintPair(subject, role string) (*TokenPair, error) {
	access, err := a.mint(subject, role, useAccess, a.accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := a.mint(subject, role, useRefresh, a.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (a *Authenticator) ParseAccess(raw string) (*Claims, error) {
	return a.parse(raw, useAccess)
}

func (a *Authenticator) ParseRefresh(raw string) (*Claims, error) {
	return a.parse(raw, useRefresh)
}

func (a *Authenticator) mint(subject, role, use string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:     role,
		TokenUse: use,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) parse(raw, use string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// Block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || claims.TokenUse != use {
		return nil, ErrBadToken
	}
	return claims, nil
}

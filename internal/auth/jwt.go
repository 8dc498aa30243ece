package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/isdelr/tweeter-be/internal/models"
	"github.com/mdobak/go-xerrors"
)

// TokenType distinguishes short-lived access tokens from refresh tokens.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

var (
	ErrInvalidToken = xerrors.Message("Token is invalid or expired")
	ErrTokenRevoked = xerrors.Message("Token is blacklisted")
)

// Claims defines the JWT claims structure. RegisteredClaims.ID carries the jti.
type Claims struct {
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is returned on login and refresh.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenManager issues, validates, rotates and revokes HS256 tokens.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	blacklist  Blacklist
	now        func() time.Time
}

// NewTokenManager creates a TokenManager.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration, blacklist Blacklist) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		blacklist:  blacklist,
		now:        time.Now,
	}
}

// IssuePair creates a new access/refresh pair for a user.
func (m *TokenManager) IssuePair(user models.User) (TokenPair, error) {
	access, err := m.generate(user.ID, user.Username, AccessToken, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.generate(user.ID, user.Username, RefreshToken, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (m *TokenManager) generate(userID uint, username string, typ TokenType, ttl time.Duration) (string, error) {
	now := m.now()
	claims := &Claims{
		UserID:    userID,
		Username:  username,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", xerrors.New(err)
	}
	return signed, nil
}

// Parse checks signature, expiry and token type. It does not consult the blacklist.
func (m *TokenManager) Parse(tokenStr string, expected TokenType) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != expected || claims.ID == "" || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Validate parses a token and rejects it if it was revoked.
func (m *TokenManager) Validate(ctx context.Context, tokenStr string, expected TokenType) (*Claims, error) {
	claims, err := m.Parse(tokenStr, expected)
	if err != nil {
		return nil, err
	}
	revoked, err := m.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, xerrors.New(err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke blacklists a token until it would have expired anyway.
func (m *TokenManager) Revoke(ctx context.Context, claims *Claims) error {
	expiresAt := m.now().Add(m.refreshTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return m.blacklist.Revoke(ctx, claims.ID, claims.UserID, expiresAt)
}

// Refresh rotates a refresh token: the presented token is revoked and a new pair is issued.
func (m *TokenManager) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := m.Validate(ctx, refreshToken, RefreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if err := m.Revoke(ctx, claims); err != nil {
		return TokenPair{}, err
	}
	return m.IssuePair(models.User{ID: claims.UserID, Username: claims.Username})
}

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"heartline/client/internal/models"
)

type Service struct {
	secret []byte
	ttl    time.Duration
}

type Claims struct {
	UserID   int64  `json:"uid"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is what a token says about its holder. The client core reads
// it without verification; the server verifies the signature.
type Identity struct {
	UserID   int64
	Nickname string
	Email    string
}

func NewService(secret string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Service{secret: []byte(secret), ttl: ttl}, nil
}

func (s *Service) GenerateToken(user models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Nickname: user.Nickname,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Service) ParseToken(token string) (Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, errors.New("invalid token")
	}
	return Identity{UserID: claims.UserID, Nickname: claims.Nickname, Email: claims.Email}, nil
}

// ReadIdentity extracts the claims without checking the signature. The
// client holds no signing secret; the server is the authority and will
// reject a forged token at connect time anyway.
func ReadIdentity(token string) (Identity, error) {
	parser := jwt.NewParser()
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return Identity{}, err
	}
	return Identity{UserID: claims.UserID, Nickname: claims.Nickname, Email: claims.Email}, nil
}

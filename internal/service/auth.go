package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"warbler/internal/model"
)

// TokenService issues and verifies the HS256 bearer tokens of the /api surface.
type TokenService struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, maxAgeSeconds int) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		maxAge: time.Duration(maxAgeSeconds) * time.Second,
		now:    time.Now,
	}
}

// Issue returns a signed access token for user.
func (s *TokenService) Issue(user *model.User) (*model.TokenResponse, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"exp":     now.Add(s.maxAge).Unix(),
		"iat":     now.Unix(),
		"jti":     uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return &model.TokenResponse{
		User:        user,
		AccessToken: signed,
		ExpiresIn:   int(s.maxAge.Seconds()),
	}, nil
}

// Parse verifies tokenString and returns the user id it was issued for.
func (s *TokenService) Parse(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, model.ErrTokenExpired
		}
		return 0, model.ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, model.ErrTokenInvalid
	}

	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return 0, model.ErrTokenInvalid
	}
	return int64(userID), nil
}

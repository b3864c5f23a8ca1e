package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fdg312/sugarcheck/internal/config"
	"github.com/fdg312/sugarcheck/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUserNotFound = errors.New("user not found")
)

// devTTL - срок жизни dev-токена
const devTTL = 30 * 24 * time.Hour

// Service - сервис авторизации
type Service struct {
	config *config.Config
	users  storage.UserStorage
	now    func() time.Time
}

func NewService(cfg *config.Config, users storage.UserStorage) *Service {
	return &Service{
		config: cfg,
		users:  users,
		now:    time.Now,
	}
}

// SignInDev - dev-авторизация, выдает JWT на 30 дней для существующего пользователя
func (s *Service) SignInDev(ctx context.Context, userID uuid.UUID) (*DevAuthResponse, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	accessToken, err := s.GenerateJWT(userID, devTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate dev JWT: %w", err)
	}

	return &DevAuthResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(devTTL.Seconds()),
		UserID:      userID,
	}, nil
}

// GenerateJWT - генерация JWT токена. ttl <= 0 берется из конфига.
func (s *Service) GenerateJWT(userID uuid.UUID, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = time.Duration(s.config.JWTTTLMinutes) * time.Minute
	}
	now := s.now()

	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    s.config.JWTIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// VerifyJWT - проверка JWT токена, возвращает subject
func (s *Service) VerifyJWT(tokenString string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithIssuer(s.config.JWTIssuer), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"papertrade/internal/models"
)

// ContextUserKey is the gin context key under which Middleware stores the
// authenticated user id.
const ContextUserKey = "user_id"

const tokenTTL = time.Hour

type Repo interface {
	CreateUser(ctx context.Context, username, passwordHash string, startingCash decimal.Decimal) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

type Service struct {
	repo         Repo
	secret       []byte
	startingCash decimal.Decimal
	log          *logrus.Logger
}

func NewService(repo Repo, secret []byte, startingCash decimal.Decimal, log *logrus.Logger) *Service {
	return &Service{repo: repo, secret: secret, startingCash: startingCash, log: log}
}

// Register creates the user and logs them in, returning a session token.
func (s *Service) Register(ctx context.Context, username, password, confirmation string) (int64, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return 0, "", models.ErrInvalidInput
	}
	if password != confirmation {
		return 0, "", fmt.Errorf("%w: passwords do not match", models.ErrInvalidInput)
	}
	if err := checkPasswordStrength(password); err != nil {
		return 0, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, "", fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, username, string(hash), s.startingCash)
	if err != nil {
		return 0, "", err
	}

	token, err := s.issueToken(id)
	if err != nil {
		return 0, "", err
	}
	s.log.Infof("registered user %q (id %d)", username, id)
	return id, token, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", models.ErrInvalidInput
	}

	u, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, models.ErrUserNotFound) {
		return "", models.ErrBadCredentials
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", models.ErrBadCredentials
	}
	return s.issueToken(u.ID)
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, password, confirmation string) error {
	if password == "" {
		return models.ErrInvalidInput
	}
	if password != confirmation {
		return fmt.Errorf("%w: passwords do not match", models.ErrInvalidInput)
	}
	if err := checkPasswordStrength(password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, userID, string(hash))
}

// Middleware rejects requests without a valid bearer token and stores the
// user id in the gin context for the handlers below it.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, err := s.ParseToken(strings.TrimPrefix(header, prefix))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ContextUserKey, userID)
		c.Next()
	}
}

func (s *Service) issueToken(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (s *Service) ParseToken(tokenString string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return 0, models.ErrBadCredentials
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, models.ErrBadCredentials
	}
	return userID, nil
}

// Passwords need at least 9 characters including a letter, a digit and a
// symbol.
func checkPasswordStrength(password string) error {
	if len(password) <= 8 {
		return fmt.Errorf("%w: password must be at least 9 characters", models.ErrInvalidInput)
	}
	var letters, digits int
	for _, c := range password {
		switch {
		case unicode.IsLetter(c):
			letters++
		case unicode.IsDigit(c):
			digits++
		}
	}
	if letters < 1 || digits < 1 || letters+digits == len([]rune(password)) {
		return fmt.Errorf("%w: password must contain at least 1 letter, digit and symbol", models.ErrInvalidInput)
	}
	return nil
}

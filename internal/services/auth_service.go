package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"

	"github.com/coreledger/backend/internal/models"
)

// AuthService issues JWTs and, on registration, opens the user's single
// account through the AccountRegistry. By the time the ledger core is
// invoked the caller identity has already passed through here.
type AuthService struct {
	users    *UserService
	accounts *AccountService
	audit    *AuditService
}

func NewAuthService(users *UserService, accounts *AccountService, audit *AuditService) *AuthService {
	viper.SetDefault("jwt.expiry_hours", 24)
	return &AuthService{
		users:    users,
		accounts: accounts,
		audit:    audit,
	}
}

// RegisterResult bundles everything a fresh registration produces.
type RegisterResult struct {
	User        *models.User    `json:"user"`
	Account     *models.Account `json:"account"`
	AccessToken string          `json:"access_token"`
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*RegisterResult, error) {
	user, err := s.users.Create(ctx, name, email, password)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	s.recordLogin(ctx, user, map[string]any{
		"email":         user.Email,
		"accountNumber": account.AccountNumber,
	})

	return &RegisterResult{User: user, Account: account, AccessToken: token}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !s.users.CheckPassword(user, password) {
		return "", ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", err
	}

	s.recordLogin(ctx, user, map[string]any{"email": user.Email})
	return token, nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  user.Role,
		"exp":   time.Now().Add(expiry).Unix(),
		"iat":   time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(viper.GetString("jwt.secret_key")))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) recordLogin(ctx context.Context, user *models.User, metadata map[string]any) {
	if _, err := s.audit.Record(ctx, user.ID, "LOGIN", "auth", metadata); err != nil {
		log.Printf("[AUTH] Audit write failed for LOGIN by user %d: %v", user.ID, err)
	}
}

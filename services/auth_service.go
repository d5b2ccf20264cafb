//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"fmt"

	"sealmax-messenger/auth"
	"sealmax-messenger/domain"
	"sealmax-messenger/errors"
	"sealmax-messenger/repositories"
)

type IAuthService interface {
	Register(username, customID, password string) (domain.User, string, error)
	Login(username, password string) (domain.User, string, error)
}

type AuthService struct {
	users  repositories.IUserRepository
	tokens *auth.TokenManager
}

func NewAuthService(users repositories.IUserRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Register creates an account and issues the initial session token.
// Validation runs before any expensive cryptographic operation, and
// the repository never sees a plain password.
func (s *AuthService) Register(username, customID, password string) (domain.User, string, error) {
	req := auth.RegisterRequest{
		Username: username,
		CustomID: customID,
		Password: password,
	}
	if err := auth.ValidateRegister(req); err != nil {
		return domain.User{}, "", err
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.users.CreateUser(username, customID, hashedPassword)
	if err != nil {
		return domain.User{}, "", err // propagates ErrDuplicateUser / ErrInvalidCustomID
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}

// Login resolves a username case-insensitively, so any case variant
// of an existing name authenticates against the same account.
func (s *AuthService) Login(username, password string) (domain.User, string, error) {
	user, err := s.users.FindByName(username)
	if err != nil {
		// Generic error to prevent user enumeration attacks.
		return domain.User{}, "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return domain.User{}, "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}

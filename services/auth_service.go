//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"pairchat/auth"
	"pairchat/domain"
	"pairchat/errors"
	"pairchat/repositories"
)

// IAuthService is the credential collaborator of the chat core. The core
// itself only consumes the user identity the middleware extracts from a
// validated token.
type IAuthService interface {
	Register(ctx context.Context, username, password string) (Token, error)
	Login(ctx context.Context, username, password string) (Token, error)
	LookupUser(ctx context.Context, id domain.UserID) (domain.User, error)
}

type Token string

type AuthService struct {
	users  repositories.IUserRepository
	tokens *auth.TokenManager
	log    *slog.Logger
}

func NewAuthService(log *slog.Logger, users repositories.IUserRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{users: users, tokens: tokens, log: log}
}

func (s *AuthService) Register(ctx context.Context, username, password string) (Token, error) {
	req := auth.RegisterRequest{Username: username, Password: password}

	// Business rules first, before any expensive hashing.
	if err := auth.ValidateRegister(req); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.users.CreateUser(ctx, username, hash)
	if err != nil {
		return "", err // propagates ErrUserAlreadyExists when the name is taken
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	s.log.Info("User registered", "user_id", user.ID)
	return Token(token), nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (Token, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if stderrors.Is(err, errors.ErrUserNotFound) {
		// Same failure as a wrong password, so the endpoint does not
		// reveal which usernames exist.
		return "", errors.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil {
		return "", err
	}
	if !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) LookupUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	return s.users.GetUserByID(ctx, id)
}

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/voicepartnerai/platform/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// userStore is the slice of the store the auth service needs.
type userStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error)
	UpdateUserLastLogin(ctx context.Context, id uuid.UUID) error
}

// Service authenticates dashboard users and issues session token pairs.
type Service struct {
	users        userStore
	tokenManager *TokenManager
}

func NewService(users userStore, tm *TokenManager) *Service {
	return &Service{users: users, tokenManager: tm}
}

// Authenticate verifies email/password and returns a fresh token pair.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*TokenPair, store.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.User{}, ErrInvalidCredentials
		}
		return nil, store.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if user.PasswordHash == "" {
		return nil, store.User{}, ErrInvalidCredentials
	}
	match, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, store.User{}, err
	}
	if !match {
		return nil, store.User{}, ErrInvalidCredentials
	}

	if err := s.users.UpdateUserLastLogin(ctx, user.ID); err != nil {
		return nil, store.User{}, fmt.Errorf("update last login: %w", err)
	}

	pair, err := s.tokenManager.Generate(user.ID, user.Email)
	if err != nil {
		return nil, store.User{}, err
	}
	return pair, user, nil
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, store.User, error) {
	userID, err := s.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, store.User{}, err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, store.User{}, err
	}
	pair, err := s.tokenManager.Generate(user.ID, user.Email)
	if err != nil {
		return nil, store.User{}, err
	}
	return pair, user, nil
}

func (s *Service) ValidateRefreshToken(token string) (uuid.UUID, error) {
	return s.tokenManager.Subject(token, tokenUseRefresh)
}

func (s *Service) ValidateAccessToken(token string) (uuid.UUID, error) {
	return s.tokenManager.Subject(token, tokenUseAccess)
}

// AuthorizeAccessToken validates the token and loads its user record.
func (s *Service) AuthorizeAccessToken(ctx context.Context, token string) (store.User, error) {
	userID, err := s.ValidateAccessToken(token)
	if err != nil {
		return store.User{}, err
	}
	return s.users.GetUserByID(ctx, userID)
}


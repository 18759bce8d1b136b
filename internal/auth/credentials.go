// Package auth hashes passwords, signs tokens and keeps the persisted refresh
// token in step with what was handed to the client.
package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rohits-web03/vidtube/internal/apperror"
	"github.com/rohits-web03/vidtube/internal/logging"
	"github.com/rohits-web03/vidtube/internal/models"
	"github.com/rohits-web03/vidtube/internal/repositories"
)

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UserStore is the slice of the User store the credential manager needs.
type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetRefreshToken(ctx context.Context, id uuid.UUID, token *string) error
}

type CredentialManager struct {
	users  UserStore
	tokens *TokenIssuer
	hasher *PasswordHasher
	logger logging.Logger
}

func NewCredentialManager(users UserStore, tokens *TokenIssuer, hasher *PasswordHasher, logger logging.Logger) *CredentialManager {
	return &CredentialManager{users: users, tokens: tokens, hasher: hasher, logger: logger}
}

func (m *CredentialManager) Tokens() *TokenIssuer { return m.tokens }

// HashPassword returns the one-way hash stored on the User record.
func (m *CredentialManager) HashPassword(password string) (string, error) {
	return m.hasher.Hash(password)
}

// IsPasswordCorrect never fails: a wrong password is just false.
func (m *CredentialManager) IsPasswordCorrect(u *models.User, candidate string) bool {
	if u == nil || u.PasswordHash == "" {
		return false
	}
	return m.hasher.Verify(u.PasswordHash, candidate)
}

// MintTokens signs a new access/refresh pair for userID and persists the
// refresh token, replacing any previous one. Concurrent calls for the same
// user are last-write-wins. Nothing is returned unless persistence succeeds.
func (m *CredentialManager) MintTokens(ctx context.Context, userID uuid.UUID) (TokenPair, error) {
	u, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return TokenPair{}, m.mintFailure(ctx, userID, err)
	}
	access, err := m.tokens.IssueAccess(u)
	if err != nil {
		return TokenPair{}, m.mintFailure(ctx, userID, err)
	}
	refresh, err := m.tokens.IssueRefresh(u.ID)
	if err != nil {
		return TokenPair{}, m.mintFailure(ctx, userID, err)
	}
	if err := m.users.SetRefreshToken(ctx, u.ID, &refresh); err != nil {
		return TokenPair{}, m.mintFailure(ctx, userID, err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (m *CredentialManager) mintFailure(ctx context.Context, userID uuid.UUID, err error) error {
	m.logger.Error(ctx, "token minting failed", "user_id", userID.String(), "err", err)
	return apperror.NewPersistence("Failed to generate tokens. Please try again.", err)
}

// Revoke clears the stored refresh token. Revoking a user without an
// active session is a no-op.
func (m *CredentialManager) Revoke(ctx context.Context, userID uuid.UUID) error {
	if err := m.users.SetRefreshToken(ctx, userID, nil); err != nil {
		return apperror.NewPersistence("Failed to log out. Please try again.", err)
	}
	return nil
}

// VerifyRefresh checks the signature and expiry of token and that it is the
// one currently persisted for its user.
func (m *CredentialManager) VerifyRefresh(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperror.NewAuthentication("Unauthorized request")
	}
	claims, err := m.tokens.ParseRefresh(token)
	if err != nil {
		return nil, apperror.New(apperror.Authentication, "Invalid refresh token", err)
	}
	id, err := SubjectID(claims)
	if err != nil {
		return nil, apperror.New(apperror.Authentication, "Invalid refresh token", err)
	}
	u, err := m.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperror.New(apperror.Authentication, "Invalid refresh token", err)
		}
		return nil, apperror.NewPersistence("Failed to load user", err)
	}
	if !u.HasSession() || *u.RefreshToken != token {
		return nil, apperror.NewAuthentication("Refresh token is expired or used")
	}
	return u, nil
}

// Package services composes validation, asset upload, credentials and the
// User store into the registration, login and logout flows.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rohits-web03/vidtube/internal/apperror"
	"github.com/rohits-web03/vidtube/internal/assets"
	"github.com/rohits-web03/vidtube/internal/auth"
	"github.com/rohits-web03/vidtube/internal/logging"
	"github.com/rohits-web03/vidtube/internal/models"
	"github.com/rohits-web03/vidtube/internal/repositories"
	"github.com/rohits-web03/vidtube/internal/validation"
	"golang.org/x/sync/errgroup"
)

const (
	AvatarField     = "avatar"
	CoverImageField = "coverImage"

	avatarPrefix = "avatars"
	coverPrefix  = "covers"
)

// UserStore is the User persistence the flows depend on.
type UserStore interface {
	validation.ExistenceChecker
	Create(ctx context.Context, u *models.User) error
	FindSanitizedByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByLogin(ctx context.Context, email, username string) (*models.User, error)
}

type UserService struct {
	users     UserStore
	validator *validation.Validator
	assets    *assets.Pipeline
	creds     *auth.CredentialManager
	logger    logging.Logger
}

func NewUserService(users UserStore, pipeline *assets.Pipeline, creds *auth.CredentialManager, logger logging.Logger) *UserService {
	return &UserService{
		users:     users,
		validator: validation.NewValidator(users),
		assets:    pipeline,
		creds:     creds,
		logger:    logger,
	}
}

// Register validates in, uploads the staged images and creates the user.
// The caller owns batch and must release it with Cleanup when the request
// ends; Register never deletes local files itself.
func (s *UserService) Register(ctx context.Context, in validation.Registration, batch *assets.Batch) (*models.User, error) {
	if err := s.validator.Validate(ctx, in); err != nil {
		return nil, err
	}
	n := in.Normalize()

	avatar := batch.Get(AvatarField)
	if avatar == nil {
		return nil, apperror.NewValidation("Avatar is required")
	}

	avatarURL, coverURL, err := s.uploadImages(ctx, avatar, batch.Get(CoverImageField))
	if err != nil {
		return nil, err
	}

	hash, err := s.creds.HashPassword(n.Password)
	if err != nil {
		// normally caught by the validator before anything is uploaded
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.NewValidation(validation.ReasonPasswordTooLong.Message())
		}
		return nil, apperror.New(apperror.Internal, "Failed to create user. Please try again.", err)
	}

	user := &models.User{
		Username:      n.Username,
		Email:         n.Email,
		FullName:      n.FullName,
		PasswordHash:  hash,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			// lost a race with a concurrent registration
			return nil, apperror.NewValidation(validation.ReasonAlreadyExists.Message())
		}
		return nil, apperror.NewPersistence("Failed to create user. Please try again.", err)
	}

	created, err := s.users.FindSanitizedByID(ctx, user.ID)
	if err != nil {
		return nil, apperror.NewPersistence("Failed to create user. Please try again.", err)
	}
	s.logger.Info(ctx, "user registered", "user_id", created.ID.String())
	return created, nil
}

// uploadImages uploads the avatar and the optional cover concurrently. Only
// the avatar can fail the registration; a failed cover becomes "".
func (s *UserService) uploadImages(ctx context.Context, avatar, cover *assets.StagedAsset) (string, string, error) {
	var (
		g                   errgroup.Group
		avatarURL, coverURL string
	)
	g.Go(func() error {
		url, err := s.assets.Upload(ctx, avatar, avatarPrefix)
		if err != nil {
			return err
		}
		avatarURL = url
		return nil
	})
	if cover != nil {
		g.Go(func() error {
			url, err := s.assets.Upload(ctx, cover, coverPrefix)
			if err != nil {
				s.logger.Warn(ctx, "cover image upload failed, continuing without it", "err", err)
				return nil
			}
			coverURL = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error(ctx, "avatar upload failed", "err", err)
		return "", "", apperror.NewUpload("Failed to upload avatar image. Please try again.", err)
	}
	return avatarURL, coverURL, nil
}

type LoginInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResult struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// Login checks the credentials and mints a fresh token pair, replacing the
// user's stored refresh token.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if email == "" && username == "" {
		return nil, apperror.NewValidation("Email or username is required")
	}

	user, err := s.users.FindByLogin(ctx, email, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperror.NewValidation("Invalid email or username")
		}
		return nil, apperror.NewPersistence("Failed to look up user", err)
	}

	if in.Password == "" {
		return nil, apperror.NewValidation("Password is required")
	}
	if !s.creds.IsPasswordCorrect(user, in.Password) {
		return nil, apperror.NewAuthentication("Invalid password")
	}

	pair, err := s.creds.MintTokens(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	loggedIn, err := s.users.FindSanitizedByID(ctx, user.ID)
	if err != nil {
		return nil, apperror.NewPersistence("Failed to load user", err)
	}
	s.logger.Info(ctx, "user logged in", "user_id", user.ID.String())
	return &LoginResult{User: loggedIn, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Logout drops the user's refresh token. Logging out twice is fine.
func (s *UserService) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.creds.Revoke(ctx, userID); err != nil {
		return err
	}
	s.logger.Info(ctx, "user logged out", "user_id", userID.String())
	return nil
}

// Refresh exchanges the current refresh token for a new pair.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	user, err := s.creds.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return auth.TokenPair{}, err
	}
	return s.creds.MintTokens(ctx, user.ID)
}

func (s *UserService) CurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindSanitizedByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperror.NewAuthentication("Invalid access token")
		}
		return nil, apperror.NewPersistence("Failed to load user", err)
	}
	return user, nil
}

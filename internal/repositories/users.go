package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rohits-web03/vidtube/internal/models"
	"gorm.io/gorm"
)

// UserRepository is the gorm-backed User store. Uniqueness of username and
// email is enforced by the schema, not by the application.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// ExistsByUsernameOrEmail runs a single OR lookup over both unique columns.
func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return count > 0, nil
}

// Create inserts u, filling ID and timestamps. A uniqueness violation is
// reported as ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// FindSanitizedByID loads the user without the password hash and refresh token.
func (r *UserRepository) FindSanitizedByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).
		Select(models.PublicColumns).
		Where("id = ?", id).
		First(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// FindByLogin matches either identifier; empty identifiers are ignored.
func (r *UserRepository) FindByLogin(ctx context.Context, email, username string) (*models.User, error) {
	if email == "" && username == "" {
		return nil, ErrNotFound
	}
	q := r.db.WithContext(ctx).Model(&models.User{})
	switch {
	case email != "" && username != "":
		q = q.Where("email = ? OR username = ?", email, username)
	case email != "":
		q = q.Where("email = ?", email)
	default:
		q = q.Where("username = ?", username)
	}

	var u models.User
	if err := q.First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// SetRefreshToken overwrites the stored refresh token; nil clears it. Updating
// a missing user is not an error.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id uuid.UUID, token *string) error {
	var value any = gorm.Expr("NULL")
	if token != nil {
		value = *token
	}
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("refresh_token", value).Error
	if err != nil {
		return fmt.Errorf("update refresh token: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("query user: %w", err)
}

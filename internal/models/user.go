package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Username      string    `json:"username" gorm:"uniqueIndex;not null"` // stored lower-cased
	Email         string    `json:"email" gorm:"uniqueIndex;not null"`
	FullName      string    `json:"fullName" gorm:"not null"`
	PasswordHash  string    `json:"-" gorm:"not null"`
	AvatarURL     string    `json:"avatar" gorm:"not null"`
	CoverImageURL string    `json:"coverImage" gorm:"not null;default:''"`
	RefreshToken  *string   `json:"-"` // nil while no session is active
	CreatedAt     time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// PublicColumns are the columns safe to return to a client.
var PublicColumns = []string{"id", "username", "email", "full_name", "avatar_url", "cover_image_url", "created_at", "updated_at"}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HasSession reports whether the user holds a persisted refresh token.
func (u *User) HasSession() bool {
	return u.RefreshToken != nil
}

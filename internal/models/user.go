package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// User is a registered account. PasswordHash always holds a bcrypt digest and
// is never serialized.
type User struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"column:password;not null"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// Profile is the outward view of a user.
type Profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (u *User) Profile() Profile {
	return Profile{ID: u.ID.String(), Email: u.Email}
}

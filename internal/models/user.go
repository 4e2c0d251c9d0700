package models

import (
	"strconv"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User represents a registered account. Room and presence state for a user
// lives in Redis, keyed by the decimal form of ID; only account data is
// stored in PostgreSQL.
type User struct {
	gorm.Model

	// Login is the credential the user signs in with.
	Login string `gorm:"uniqueIndex;size:50;not null"`
	// PasswordHash is a bcrypt hash of the user's password.
	PasswordHash string `gorm:"size:128;not null" json:"-"`
	// Username is the generated public display name (e.g. "user_12345678").
	Username string `gorm:"uniqueIndex;size:50;not null" json:"username"`
	// TelegramID links the account to a Telegram identity. Nullable.
	TelegramID *string `gorm:"uniqueIndex;size:50"`
	// Role is "user" or "admin".
	Role string `gorm:"size:20;default:user"`
}

const bcryptCost = 12

// SetPassword hashes the plain password and stores the hash.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether the plain password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// RedisID returns the user's ID in the form used for Redis keys.
func (u *User) RedisID() string {
	return strconv.FormatUint(uint64(u.ID), 10)
}

// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// User represents an account in murmur.
// Following is materialized from the follows table; Followers is a stored counter.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"not null" json:"-"`
	Name      string    `gorm:"not null" json:"name"`
	Avatar    string    `gorm:"size:2" json:"avatar"`
	Bio       string    `gorm:"not null;default:''" json:"bio"`
	Followers int       `gorm:"not null;default:0" json:"followers"`
	Following []uint    `gorm:"-" json:"following"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile is the lightweight projection used in following lists.
type Profile struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
}

// Profile returns the user's lightweight projection.
func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Username: u.Username, Name: u.Name, Avatar: u.Avatar}
}

const maxAvatarRunes = 2

// AvatarInitials derives the avatar label from a display name: the first
// character of each whitespace-separated word, uppercased, at most two.
func AvatarInitials(name string) string {
	var b strings.Builder
	count := 0
	for _, word := range strings.Fields(name) {
		if count == maxAvatarRunes {
			break
		}
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
		count++
	}
	return b.String()
}

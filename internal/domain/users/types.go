package users

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already exists")
	QueryTimeoutDuration = time.Second * 5
)

// HashCost is the bcrypt work factor applied by Password.Set.
var HashCost = 12

type User struct {
	ID         string     `json:"id" bson:"_id"`
	Name       string     `json:"name" bson:"name"`
	Username   string     `json:"username" bson:"username"`
	Email      string     `json:"email" bson:"email"`
	Password   Password   `json:"-" bson:"password"`
	Bio        string     `json:"bio" bson:"bio"`
	Avatar     string     `json:"avatar" bson:"avatar"`
	IsVerified bool       `json:"isVerified" bson:"is_verified"`
	IsActive   bool       `json:"isActive" bson:"is_active"`
	LastLogin  *time.Time `json:"lastLogin,omitempty" bson:"last_login,omitempty"`
	CreatedAt  time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" bson:"updated_at"`
}

// Profile is a user together with the lists derived from other collections.
type Profile struct {
	*User
	CreatedTrips []string `json:"createdTrips"`
	SavedTrips   []string `json:"savedTrips"`
	Followers    []string `json:"followers"`
	Following    []string `json:"following"`
}

// Summary is the public slice of a user embedded in trips, comments and reviews.
type Summary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

func (u *User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name, Username: u.Username, Avatar: u.Avatar}
}

// Normalize trims and lowercases a username or email.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Password keeps the bcrypt hash. The plaintext is never persisted.
type Password struct {
	plaintext *string
	Hash      []byte `bson:"hash"`
}

func (p *Password) Set(text string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(text), HashCost)
	if err != nil {
		return err
	}

	p.plaintext = &text
	p.Hash = hash

	return nil
}

func (p *Password) Compare(text string) error {
	return bcrypt.CompareHashAndPassword(p.Hash, []byte(text))
}

package entity

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/gosimple/unidecode"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a local account. Password is nil for accounts created through
// Google sign-in; GoogleID is nil until the first federated login.
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Username      string    `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Email         string    `gorm:"size:100;not null;uniqueIndex" json:"email"`
	PhoneNumber   string    `gorm:"size:30;not null;default:''" json:"phone_number"`
	Password      *string   `gorm:"size:100" json:"-"`
	GoogleID      *string   `gorm:"size:255;uniqueIndex" json:"-"`
	PictureURL    *string   `gorm:"size:512" json:"picture_url,omitempty"`
	EmailVerified bool      `gorm:"not null;default:false" json:"email_verified"`
	Role          string    `gorm:"size:20;not null;default:'user'" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName sets the gorm table name
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user may use the admin routes
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// BeforeSave hashes the password unless it already is a bcrypt hash
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.Password == nil || *u.Password == "" || isBcryptHash(*u.Password) {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(*u.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[User.BeforeSave] failed to hash password for email=%s: %v", u.Email, err)
		return err
	}
	h := string(hashed)
	u.Password = &h
	return nil
}

// CheckPassword compares a plain password with the stored hash.
// Accounts without a password never match.
func (u *User) CheckPassword(password string) bool {
	if u.Password == nil || *u.Password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*u.Password), []byte(password)) == nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// AccountKind tells which credentials an account can authenticate with.
type AccountKind int

const (
	// AccountPassword has a local password and no linked provider.
	AccountPassword AccountKind = iota + 1
	// AccountFederated was created by provider sign-in and has no password.
	AccountFederated
	// AccountLinked has both a password and a provider subject.
	AccountLinked
)

func (k AccountKind) String() string {
	switch k {
	case AccountPassword:
		return "password"
	case AccountFederated:
		return "federated"
	case AccountLinked:
		return "linked"
	default:
		return "unknown"
	}
}

// Account is the tagged view of a user's credentials.
type Account struct {
	Kind            AccountKind
	PasswordHash    string
	ProviderSubject string
}

// HasPassword reports whether the account accepts password login
func (a Account) HasPassword() bool {
	return a.Kind == AccountPassword || a.Kind == AccountLinked
}

// Account classifies the user's stored credentials. A user carrying neither
// a password nor a provider subject is reported as an error: the store must
// never hold one.
func (u *User) Account() (Account, error) {
	hasPassword := u.Password != nil && *u.Password != ""
	hasSubject := u.GoogleID != nil && *u.GoogleID != ""

	switch {
	case hasPassword && hasSubject:
		return Account{Kind: AccountLinked, PasswordHash: *u.Password, ProviderSubject: *u.GoogleID}, nil
	case hasPassword:
		return Account{Kind: AccountPassword, PasswordHash: *u.Password}, nil
	case hasSubject:
		return Account{Kind: AccountFederated, ProviderSubject: *u.GoogleID}, nil
	default:
		return Account{}, fmt.Errorf("user %d has no credentials", u.ID)
	}
}

// UsernameMaxLength matches the users.username column size
const UsernameMaxLength = 50

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeUsername transliterates the input to ASCII, lowercases it and
// collapses every run of non-alphanumeric characters into a single dot.
// Leading and trailing dots are stripped. Punctuation is never spelled out:
// "Tom & Jerry" becomes "tom.jerry".
func SanitizeUsername(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	s := strings.ToLower(unidecode.Unidecode(input))
	s = nonAlphanumeric.ReplaceAllString(s, ".")
	s = strings.Trim(s, ".")
	if len(s) > UsernameMaxLength {
		s = strings.Trim(s[:UsernameMaxLength], ".")
	}
	return s
}

// DeriveUsername picks a username candidate for a federated account: the
// display name, then the email local part, then a timestamp placeholder.
func DeriveUsername(name, email string, now time.Time) string {
	if s := SanitizeUsername(name); s != "" {
		return s
	}
	local := email
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
	}
	if s := SanitizeUsername(local); s != "" {
		return s
	}
	return fmt.Sprintf("user%d", now.UnixMilli()%100000)
}

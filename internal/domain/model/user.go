package model

import (
	"net/mail"
	"strings"
	"time"

	"homeaura-subscription/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Phone struct {
	Primary   string
	Secondary string
}

// User is a marketplace account. It owns at most one Subscription.
// Its payment intents live in the ledger, keyed by transaction id.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Phone        Phone
	Subscription *Subscription
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const minPasswordLen = 6

// NewUser validates the input and hashes the password with bcrypt.
func NewUser(name, email, password string, phone Phone, role Role) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || len(password) < minPasswordLen {
		return nil, domain.ErrInvalidArgument
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.ErrInvalidArgument
	}
	if strings.TrimSpace(phone.Primary) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if role == "" {
		role = RoleUser
	}
	if role != RoleUser && role != RoleAdmin {
		return nil, domain.ErrInvalidArgument
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Phone:        phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (u *User) IsZero() bool  { return u == nil || u.ID == "" }
func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmptyPassword      = errors.New("password is required")
)

const RoleAdmin = "admin"

type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Config struct {
	Username     string
	PasswordHash string
	BcryptCost   int
}

// Gate checks admin credentials against a single configured account.
type Gate struct {
	username     string
	passwordHash []byte
	bcryptCost   int
}

func NewGate(cfg Config) *Gate {
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = RoleAdmin
	}
	return &Gate{
		username:     username,
		passwordHash: []byte(strings.TrimSpace(cfg.PasswordHash)),
		bcryptCost:   cfg.BcryptCost,
	}
}

// Open reports whether the gate lets every request through.
func (g *Gate) Open() bool {
	return len(g.passwordHash) == 0
}

func (g *Gate) Authenticate(username, password string) (*User, error) {
	if g.Open() {
		return &User{Username: g.username, Role: RoleAdmin}, nil
	}
	if !secureEqual(strings.TrimSpace(username), g.username) {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(g.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &User{Username: g.username, Role: RoleAdmin}, nil
}

// HashPassword produces a value suitable for ADMIN_PASS_HASH.
func (g *Gate) HashPassword(password string) (string, error) {
	return HashPassword(password, g.bcryptCost)
}

func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

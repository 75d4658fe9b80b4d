package app

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/labsync/internal/models"
	"github.com/shrimpsizemoose/labsync/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// Authenticator checks credentials against the config accounts first and
// the users table second.
type Authenticator struct {
	accounts []AccountConfig
	store    store.LabStore
}

func NewAuthenticator(accounts []AccountConfig, store store.LabStore) *Authenticator {
	return &Authenticator{accounts: accounts, store: store}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ConfigAccount returns the config account matching email, if any.
func (a *Authenticator) ConfigAccount(email string) *AccountConfig {
	for i := range a.accounts {
		acc := &a.accounts[i]
		if acc.Email != "" && strings.EqualFold(acc.Email, email) {
			return acc
		}
		if acc.EmailSuffix != "" && strings.HasSuffix(strings.ToLower(email), strings.ToLower(acc.EmailSuffix)) {
			return acc
		}
	}
	return nil
}

// UserFor returns the user behind email, synthesizing one for config
// accounts. Lab admins always have restricted-lab access.
func (a *Authenticator) UserFor(email string) (*models.User, error) {
	if acc := a.ConfigAccount(email); acc != nil {
		return &models.User{
			Email:     email,
			FirstName: acc.FirstName,
			LastName:  acc.LastName,
			Role:      acc.Role,
			LabAccess: acc.Role == models.RoleLabAdmin,
		}, nil
	}
	return a.store.GetUser(email)
}

func (a *Authenticator) Authenticate(email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)

	if acc := a.ConfigAccount(email); acc != nil {
		if !checkPassword(acc.PasswordHash, password) {
			logger.Debug.Printf("Config account password mismatch for %s", email)
			return nil, ErrInvalidCredentials
		}
		return a.UserFor(email)
	}

	user, err := a.store.GetUser(email)
	if err != nil {
		return nil, err
	}
	if user == nil || !checkPassword(user.PasswordHash, password) {
		logger.Debug.Printf("Login failed for %s", email)
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

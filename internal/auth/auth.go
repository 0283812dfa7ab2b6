package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pollsite/backend/internal/models"
	"github.com/pollsite/backend/pkg/utils"
)

// ErrInvalidCredentials is returned for an unknown user, a wrong password or an inactive account.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Authenticate checks username and password against the repository.
func Authenticate(ctx context.Context, repo Repository, username, password string) (*models.User, error) {
	u, err := repo.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		utils.BurnPasswordCheck(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !utils.CheckPassword(password, u.Password) || !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// CreateUserParams describes a new account.
type CreateUserParams struct {
	Username string
	Password string
	IsStaff  bool
}

// CreateUser hashes the password and stores an active user.
func CreateUser(ctx context.Context, repo Repository, p CreateUserParams) (*models.User, error) {
	username := strings.TrimSpace(p.Username)
	if username == "" {
		return nil, errors.New("username must not be empty")
	}
	hash, err := utils.HashPassword(p.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{
		Username: username,
		Password: hash,
		IsStaff:  p.IsStaff,
		IsActive: true,
	}
	if err := repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

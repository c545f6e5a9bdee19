// Package users stores account rows for the document-store server.
package users

import (
	"context"
	"errors"

	"github.com/mpetrenko/homeledger/internal/server/models"
)

// ErrAlreadyExists is returned when the username is taken.
var ErrAlreadyExists = errors.New("user already exists")

type Repository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

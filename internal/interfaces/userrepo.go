package interfaces

import (
	"context"

	"github.com/haguru/doorquest/internal/models"
)

// UserRepository defines the contract for storing and retrieving User data.
// Usernames are not unique; lookups return the oldest matching row.
type UserRepository interface {
	AddUser(ctx context.Context, user models.User) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsernames(ctx context.Context) ([]string, error)
	UpdatePassword(ctx context.Context, user *models.User, hashedPassword string) error
	EnsureIndices(ctx context.Context) error
	Close(ctx context.Context) error
}

package interfaces

import (
	"context"
	"io"
)

type UserService interface {
	RegisterUser(ctx context.Context, username, password string) (int64, error)
	Login(ctx context.Context, username, password string) error
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
	ListUsernames(ctx context.Context) ([]string, error)
	UploadProfilePic(ctx context.Context, username, filename string, r io.Reader) (string, error)
	GetProfilePic(ctx context.Context, username string) ([]byte, error)
}

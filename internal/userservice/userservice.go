// userservice.go
package userservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/haguru/doorquest/internal/hasher"
	"github.com/haguru/doorquest/internal/interfaces"
	"github.com/haguru/doorquest/internal/models"
	"github.com/haguru/doorquest/pkg/helper"
)

var (
	// ErrInvalidCredentials covers both an unknown username and a wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameRequired   = errors.New("username is required")
	ErrFileRequired       = errors.New("file is required")
)

type UserService struct {
	UserRepo interfaces.UserRepository
	Hasher   interfaces.Hasher
	Pictures interfaces.ProfilePictureStore
	Logger   interfaces.Logger
}

// NewUserService creates a new UserService instance.
func NewUserService(repo interfaces.UserRepository, passwordHasher interfaces.Hasher,
	pictures interfaces.ProfilePictureStore, logger interfaces.Logger,
) *UserService {
	return &UserService{
		UserRepo: repo,
		Hasher:   passwordHasher,
		Pictures: pictures,
		Logger:   logger,
	}
}

// RegisterUser hashes the password and adds the user via the repository.
// Existing users with the same name are not checked.
func (s *UserService) RegisterUser(ctx context.Context, username, password string) (int64, error) {
	funcName := helper.GetFuncName()
	s.Logger.Debug("Entering function", "func", funcName, "user", username)
	defer s.Logger.Debug("Exiting function", "func", funcName, "user", username)

	hashedPassword, err := s.hash(funcName, username, password)
	if err != nil {
		return 0, err
	}

	userID, err := s.UserRepo.AddUser(ctx, *models.NewUser(username, hashedPassword))
	if err != nil {
		s.Logger.Error(ErrFailedToRegisterUser, "func", funcName, "user", username, "error", err)
		return 0, fmt.Errorf("%s: %w", ErrFailedToRegisterUser, err)
	}
	s.Logger.Info("User registered successfully", "func", funcName, "user", username, "ID", userID)
	return userID, nil
}

// Login checks username and password. It returns ErrInvalidCredentials for an
// unknown user and for a wrong password alike.
func (s *UserService) Login(ctx context.Context, username, password string) error {
	funcName := helper.GetFuncName()
	s.Logger.Debug("Entering function", "func", funcName, "user", username)
	defer s.Logger.Debug("Exiting function", "func", funcName, "user", username)

	if _, err := s.authenticate(ctx, funcName, username, password); err != nil {
		return err
	}
	s.Logger.Info("User authenticated successfully", "func", funcName, "user", username)
	return nil
}

// ChangePassword replaces the password after checking the old one. Failures
// to authenticate leave the stored hash untouched.
func (s *UserService) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	funcName := helper.GetFuncName()
	s.Logger.Debug("Entering function", "func", funcName, "user", username)
	defer s.Logger.Debug("Exiting function", "func", funcName, "user", username)

	user, err := s.authenticate(ctx, funcName, username, oldPassword)
	if err != nil {
		return err
	}

	hashedPassword, err := s.hash(funcName, username, newPassword)
	if err != nil {
		return err
	}
	if err := s.UserRepo.UpdatePassword(ctx, user, hashedPassword); err != nil {
		s.Logger.Error(ErrFailedToUpdatePassword, "func", funcName, "user", username, "error", err)
		return fmt.Errorf("%s: %w", ErrFailedToUpdatePassword, err)
	}

	s.Logger.Info("Password updated successfully", "func", funcName, "user", username, "ID", user.ID)
	return nil
}

// ListUsernames returns all usernames in storage order.
func (s *UserService) ListUsernames(ctx context.Context) ([]string, error) {
	usernames, err := s.UserRepo.ListUsernames(ctx)
	if err != nil {
		s.Logger.Error(ErrFailedToListUsers, "func", helper.GetFuncName(), "error", err)
		return nil, fmt.Errorf("%s: %w", ErrFailedToListUsers, err)
	}
	return usernames, nil
}

// UploadProfilePic stores the picture read from r under username. The
// extension is taken from the client supplied filename and must be an image
// type the picture store accepts.
func (s *UserService) UploadProfilePic(ctx context.Context, username, filename string, r io.Reader) (string, error) {
	funcName := helper.GetFuncName()
	if username == "" {
		return "", ErrUsernameRequired
	}
	if r == nil {
		return "", ErrFileRequired
	}

	stored, err := s.Pictures.Save(username, r, extension(filename))
	if err != nil {
		s.Logger.Error(ErrFailedToSavePicture, "func", funcName, "user", username, "filename", filename, "error", err)
		return "", fmt.Errorf("%s: %w", ErrFailedToSavePicture, err)
	}

	s.Logger.Info("Profile picture uploaded", "func", funcName, "user", username, "file", stored)
	return stored, nil
}

// GetProfilePic returns the stored picture bytes for username.
func (s *UserService) GetProfilePic(ctx context.Context, username string) ([]byte, error) {
	data, err := s.Pictures.Load(username)
	if err != nil {
		s.Logger.Debug(ErrFailedToLoadPicture, "func", helper.GetFuncName(), "user", username, "error", err)
		return nil, fmt.Errorf("%s: %w", ErrFailedToLoadPicture, err)
	}
	return data, nil
}

// hash hashes password. An over-long password is a caller error and is
// logged as a warning.
func (s *UserService) hash(funcName, username, password string) (string, error) {
	hashedPassword, err := s.Hasher.Hash(password)
	if err != nil {
		if errors.Is(err, hasher.ErrPasswordTooLong) {
			s.Logger.Warn(ErrFailedToHashPassword, "func", funcName, "user", username, "error", err)
		} else {
			s.Logger.Error(ErrFailedToHashPassword, "func", funcName, "user", username, "error", err)
		}
		return "", fmt.Errorf("%s: %w", ErrFailedToHashPassword, err)
	}
	return hashedPassword, nil
}

// authenticate returns the user if password matches its stored hash.
func (s *UserService) authenticate(ctx context.Context, funcName, username, password string) (*models.User, error) {
	user, err := s.UserRepo.GetUserByUsername(ctx, username)
	if err != nil {
		s.Logger.Error(ErrRetrievingUser, "func", funcName, "user", username, "error", err)
		return nil, fmt.Errorf("%s: %w", ErrRetrievingUser, err)
	}
	if user == nil {
		s.Logger.Warn(MsgUserNotFound, "func", funcName, "user", username)
		return nil, ErrInvalidCredentials
	}
	if !s.Hasher.Verify(password, user.HashedPassword) {
		s.Logger.Warn(MsgInvalidPassword, "func", funcName, "user", username)
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// extension returns the text after the last dot, or the whole name when it has none.
func extension(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx != -1 {
		return filename[idx+1:]
	}
	return filename
}

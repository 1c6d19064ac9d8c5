package userservice

const (
	// Error messages for user service operations
	ErrFailedToHashPassword   = "failed to hash password" // #nosec G101
	ErrFailedToRegisterUser   = "failed to register user"
	ErrRetrievingUser         = "error retrieving user"
	ErrFailedToListUsers      = "failed to list users"
	ErrFailedToUpdatePassword = "failed to update password" // #nosec G101
	ErrFailedToSavePicture    = "failed to save profile picture"
	ErrFailedToLoadPicture    = "failed to load profile picture"

	// Log messages
	MsgUserNotFound    = "user not found"
	MsgInvalidPassword = "invalid password"
)

package constants

const (
	// UsersCollection is the users table (SQL) or collection (MongoDB).
	UsersCollection = "users"

	IDField       = "id"
	UsernameField = "username"
	PasswordField = "password"
)

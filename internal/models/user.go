package models

// User is a row of the users table: a username and the hash of its password.
// Several rows may share a username.
type User struct {
	ID             int64  `bson:"_id" db:"id"`
	Username       string `bson:"username" db:"username"`
	HashedPassword string `bson:"password" db:"password"`
}

// NewUser creates a new User instance with the given username and password hash.
// The ID is left zero for the store to assign.
func NewUser(username string, hashedPassword string) *User {
	return &User{
		Username:       username,
		HashedPassword: hashedPassword,
	}
}

package sqlrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/haguru/doorquest/internal/interfaces"
	"github.com/haguru/doorquest/internal/models"
	"github.com/haguru/doorquest/internal/userrepo/constants"
	"github.com/haguru/doorquest/pkg/databases/sqldb"
)

// The username index is not unique; several rows may share a username.

// PostgresSchema creates the users table on PostgreSQL.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL,
	password TEXT NOT NULL CHECK (password <> '')
)`,
	`CREATE INDEX IF NOT EXISTS users_username_idx ON users (username)`,
}

// SQLiteSchema creates the users table on SQLite.
var SQLiteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL,
	password TEXT NOT NULL CHECK (password <> '')
)`,
	`CREATE INDEX IF NOT EXISTS users_username_idx ON users (username)`,
}

// SQLUserRepository implements UserRepository on any SQL DBClient.
type SQLUserRepository struct {
	dbClient interfaces.DBClient
	schema   []string
}

// NewSQLUserRepository creates a repository that applies schema in EnsureIndices.
func NewSQLUserRepository(dbClient interfaces.DBClient, schema []string) (*SQLUserRepository, error) {
	if dbClient == nil {
		return nil, fmt.Errorf("dbClient cannot be nil")
	}
	if len(schema) == 0 {
		return nil, fmt.Errorf("schema cannot be empty")
	}
	return &SQLUserRepository{dbClient: dbClient, schema: schema}, nil
}

// AddUser inserts user and returns the id the database assigned.
func (r *SQLUserRepository) AddUser(ctx context.Context, user models.User) (int64, error) {
	if user.HashedPassword == "" {
		return 0, fmt.Errorf("refusing to store user %q without a password hash", user.Username)
	}
	doc := map[string]interface{}{
		constants.UsernameField: user.Username,
		constants.PasswordField: user.HashedPassword,
	}

	insertedID, err := r.dbClient.InsertOne(ctx, constants.UsersCollection, doc)
	if err != nil {
		return 0, fmt.Errorf("failed to add user: %w", err)
	}
	id, ok := insertedID.(int64)
	if !ok {
		return 0, fmt.Errorf("failed to assert inserted ID to int64, got %T", insertedID)
	}
	return id, nil
}

// GetUserByUsername returns the oldest user with username, or nil if there is none.
func (r *SQLUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	filter := map[string]interface{}{constants.UsernameField: username}
	err := r.dbClient.FindOne(ctx, constants.UsersCollection, filter, &user)
	if err != nil {
		if errors.Is(err, interfaces.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return &user, nil
}

// ListUsernames returns every username in insertion order, duplicates included.
func (r *SQLUserRepository) ListUsernames(ctx context.Context) ([]string, error) {
	docs, err := r.dbClient.FindMany(ctx, constants.UsersCollection, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	usernames := make([]string, 0, len(docs))
	for _, doc := range docs {
		row, ok := doc.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected row type %T", doc)
		}
		var user models.User
		if err := sqldb.Decode(row, &user); err != nil {
			return nil, fmt.Errorf("failed to decode user row: %w", err)
		}
		usernames = append(usernames, user.Username)
	}
	return usernames, nil
}

// UpdatePassword replaces the stored hash of that exact row.
func (r *SQLUserRepository) UpdatePassword(ctx context.Context, user *models.User, hashedPassword string) error {
	if hashedPassword == "" {
		return fmt.Errorf("refusing to store an empty password hash")
	}
	filter := map[string]interface{}{constants.IDField: user.ID}
	update := map[string]interface{}{constants.PasswordField: hashedPassword}

	n, err := r.dbClient.UpdateOne(ctx, constants.UsersCollection, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to update password: user %d not found", user.ID)
	}
	user.HashedPassword = hashedPassword
	return nil
}

// EnsureIndices creates the users table and its username index.
func (r *SQLUserRepository) EnsureIndices(ctx context.Context) error {
	return r.dbClient.EnsureSchema(ctx, constants.UsersCollection, r.schema)
}

// Close closes the database connection.
func (r *SQLUserRepository) Close(ctx context.Context) error {
	return r.dbClient.Disconnect(ctx)
}

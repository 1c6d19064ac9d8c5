package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"go.mongodb.org/mongo-driver/bson"
	mongosdk "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/haguru/doorquest/internal/interfaces"
	"github.com/haguru/doorquest/internal/models"
	"github.com/haguru/doorquest/internal/userrepo/constants"
	mongoClient "github.com/haguru/doorquest/pkg/databases/mongo"
)

// MongoDBClient is the part of mongo.MongoDBClient the repository needs.
type MongoDBClient interface {
	interfaces.DBClient
	NextSequence(ctx context.Context, name string) (int64, error)
}

// MongoUserRepository implements UserRepository on MongoDB. Ids are integers
// drawn from a per-collection sequence and stored as _id.
type MongoUserRepository struct {
	dbClient MongoDBClient
}

// NewMongoUserRepository creates a new MongoDB repository instance.
func NewMongoUserRepository(dbClient interfaces.DBClient) (*MongoUserRepository, error) {
	if dbClient == nil {
		return nil, fmt.Errorf("dbClient cannot be nil")
	}
	client, ok := dbClient.(MongoDBClient)
	if !ok {
		return nil, fmt.Errorf("dbClient must be a MongoDB client")
	}
	return &MongoUserRepository{dbClient: client}, nil
}

// AddUser saves a new user to MongoDB.
func (r *MongoUserRepository) AddUser(ctx context.Context, user models.User) (int64, error) {
	if user.HashedPassword == "" {
		return 0, fmt.Errorf("refusing to store user %q without a password hash", user.Username)
	}
	id, err := r.dbClient.NextSequence(ctx, constants.UsersCollection)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate user id: %w", err)
	}

	doc := map[string]interface{}{
		mongoClient.IDFIELD:     id,
		constants.UsernameField: user.Username,
		constants.PasswordField: user.HashedPassword,
	}
	if _, err := r.dbClient.InsertOne(ctx, constants.UsersCollection, doc); err != nil {
		return 0, fmt.Errorf("failed to add user to MongoDB: %w", err)
	}
	return id, nil
}

// GetUserByUsername returns the user with the lowest id for username, or nil.
func (r *MongoUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	filter := bson.M{constants.UsernameField: username}
	err := r.dbClient.FindOne(ctx, constants.UsersCollection, filter, &user)
	if err != nil {
		if errors.Is(err, interfaces.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by username from MongoDB: %w", err)
	}
	return &user, nil
}

// ListUsernames returns every username ordered by id.
func (r *MongoUserRepository) ListUsernames(ctx context.Context) ([]string, error) {
	docs, err := r.dbClient.FindMany(ctx, constants.UsersCollection, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list users from MongoDB: %w", err)
	}

	usernames := make([]string, 0, len(docs))
	for _, doc := range docs {
		user, err := decodeUser(doc)
		if err != nil {
			return nil, err
		}
		usernames = append(usernames, user.Username)
	}
	return usernames, nil
}

// UpdatePassword replaces the stored hash of the document with user.ID.
func (r *MongoUserRepository) UpdatePassword(ctx context.Context, user *models.User, hashedPassword string) error {
	if hashedPassword == "" {
		return fmt.Errorf("refusing to store an empty password hash")
	}
	filter := bson.M{mongoClient.IDFIELD: user.ID}
	update := bson.M{constants.PasswordField: hashedPassword}

	matched, err := r.dbClient.UpdateOne(ctx, constants.UsersCollection, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update password in MongoDB: %w", err)
	}
	if matched == 0 {
		return fmt.Errorf("failed to update password: user %d not found", user.ID)
	}
	user.HashedPassword = hashedPassword
	return nil
}

// EnsureIndices creates a non-unique username index.
func (r *MongoUserRepository) EnsureIndices(ctx context.Context) error {
	indexModel := mongosdk.IndexModel{
		Keys:    bson.D{{Key: constants.UsernameField, Value: 1}},
		Options: options.Index().SetName("users_username_idx"),
	}
	return r.dbClient.EnsureSchema(ctx, constants.UsersCollection, indexModel)
}

// Close disconnects the MongoDB client.
func (r *MongoUserRepository) Close(ctx context.Context) error {
	return r.dbClient.Disconnect(ctx)
}

func decodeUser(doc interfaces.Document) (*models.User, error) {
	var user models.User
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "bson",
		Result:           &user,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to decode user document: %w", err)
	}
	return &user, nil
}

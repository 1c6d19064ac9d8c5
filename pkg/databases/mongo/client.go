package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/haguru/doorquest/config"
	"github.com/haguru/doorquest/internal/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	MAXPOOLSIZE = 20
	IDFIELD     = "_id"

	// CountersCollection holds one sequence document per collection that needs integer ids.
	CountersCollection = "counters"
)

// MongoDBClient implements the interfaces.DBClient interface for MongoDB operations.
type MongoDBClient struct {
	ServerOpts       *options.ServerAPIOptions
	client           *mongo.Client
	db               *mongo.Database
	databaseName     string
	timeout          time.Duration
	validCollections map[string]bool // A map to validate collection names
	validFields      map[string]bool // A map to validate field names
}

// NewMongoDB returns an unconnected MongoDB client.
func NewMongoDB(dbConfig *config.MongoDBConfig) *MongoDBClient {
	return &MongoDBClient{
		databaseName:     dbConfig.DatabaseName,
		timeout:          dbConfig.Timeout,
		ServerOpts:       config.BuildServerAPIOptions(dbConfig.Options),
		validCollections: config.ListToMap(dbConfig.ValidCollections),
		validFields:      config.ListToMap(dbConfig.ValidFields),
	}
}

// Connect establishes a connection to the MongoDB server at dsn
// ("mongodb://<host>:<port>/<database>"). The configured database name wins
// over the one in the DSN path.
func (m *MongoDBClient) Connect(ctx context.Context, dsn string) error {
	if dsn == "" {
		return fmt.Errorf("MongoDBClient: DSN is empty")
	}
	if !strings.HasPrefix(dsn, "mongodb://") && !strings.HasPrefix(dsn, "mongodb+srv://") {
		return fmt.Errorf("MongoDBClient: Invalid DSN format, expected 'mongodb://' or 'mongodb+srv://'")
	}

	databaseName := m.databaseName
	if databaseName == "" {
		var err error
		databaseName, err = getDBNameFromMongoDSN(dsn)
		if err != nil {
			return fmt.Errorf("MongoDBClient: Failed to extract database name from datasource name(dsn): %v", err)
		}
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	clientOptions := options.Client().ApplyURI(dsn)
	if m.ServerOpts != nil {
		clientOptions.SetServerAPIOptions(m.ServerOpts)
	}
	clientOptions.SetMaxPoolSize(MAXPOOLSIZE)
	clientOptions.SetReadPreference(readpref.PrimaryPreferred())

	var err error
	m.client, err = mongo.Connect(ctx, clientOptions)
	if err != nil {
		return err
	}
	if err = m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("MongoDBClient: Failed to connect to MongoDB server: %v", err)
	}

	m.db = m.client.Database(databaseName)
	return nil
}

// Disconnect closes the connection to the MongoDB database.
func (m *MongoDBClient) Disconnect(ctx context.Context) error {
	if m.client != nil {
		return m.client.Disconnect(ctx)
	}
	return nil
}

// InsertOne inserts a document and returns its _id.
func (m *MongoDBClient) InsertOne(ctx context.Context, collectionName string, document interfaces.Document) (interface{}, error) {
	if err := m.ready(collectionName); err != nil {
		return nil, err
	}
	sanitized, err := m.sanitizeDocument(document)
	if err != nil {
		return nil, err
	}

	res, err := m.db.Collection(collectionName).InsertOne(ctx, sanitized)
	if err != nil {
		return nil, fmt.Errorf("MongoDBClient: Failed to insert one into %s: %w", collectionName, err)
	}
	return res.InsertedID, nil
}

// FindOne decodes the matching document with the lowest _id into result.
func (m *MongoDBClient) FindOne(ctx context.Context, collectionName string, filter interfaces.Document, result interfaces.Document) error {
	if err := m.ready(collectionName); err != nil {
		return err
	}
	sanitizedFilter, err := m.sanitizeDocument(filter)
	if err != nil {
		return err
	}

	opts := options.FindOne().SetSort(bson.D{{Key: IDFIELD, Value: 1}})
	err = m.db.Collection(collectionName).FindOne(ctx, sanitizedFilter, opts).Decode(result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return interfaces.ErrNoDocuments
		}
		return fmt.Errorf("MongoDBClient: Failed to find one in %s: %w", collectionName, err)
	}
	return nil
}

// FindMany returns every matching document as map[string]interface{}, ordered by _id.
func (m *MongoDBClient) FindMany(ctx context.Context, collectionName string, filter interfaces.Document) ([]interfaces.Document, error) {
	if err := m.ready(collectionName); err != nil {
		return nil, err
	}
	sanitizedFilter := bson.M{}
	if filter != nil {
		var err error
		if sanitizedFilter, err = m.sanitizeDocument(filter); err != nil {
			return nil, err
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: IDFIELD, Value: 1}})
	cursor, err := m.db.Collection(collectionName).Find(ctx, sanitizedFilter, opts)
	if err != nil {
		return nil, fmt.Errorf("MongoDBClient: Finding many in %s failed: %w", collectionName, err)
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	results := []interfaces.Document{}
	for cursor.Next(ctx) {
		var doc map[string]interface{}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("MongoDBClient: Failed to decode cursor: %w", err)
		}
		results = append(results, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("MongoDBClient: cursor error: %w", err)
	}
	return results, nil
}

// UpdateOne applies update as a $set on the first document matching filter.
// Returns the count of matched documents.
func (m *MongoDBClient) UpdateOne(ctx context.Context, collectionName string, filter interfaces.Document, update interfaces.Document) (int64, error) {
	if err := m.ready(collectionName); err != nil {
		return 0, err
	}
	sanitizedFilter, err := m.sanitizeDocument(filter)
	if err != nil {
		return 0, err
	}
	sanitizedUpdate, err := m.sanitizeDocument(update)
	if err != nil {
		return 0, err
	}

	res, err := m.db.Collection(collectionName).UpdateOne(ctx, sanitizedFilter, bson.M{"$set": sanitizedUpdate})
	if err != nil {
		return 0, fmt.Errorf("MongoDBClient: Failed updating one in %s: %w", collectionName, err)
	}
	return res.MatchedCount, nil
}

// NextSequence atomically increments and returns the counter called name.
// The first call for a name returns 1.
func (m *MongoDBClient) NextSequence(ctx context.Context, name string) (int64, error) {
	if m.db == nil {
		return 0, fmt.Errorf("MongoDBClient is not connected to a database")
	}

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := m.db.Collection(CountersCollection).FindOneAndUpdate(ctx,
		bson.M{IDFIELD: name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("MongoDBClient: Failed to advance sequence %s: %w", name, err)
	}
	return counter.Seq, nil
}

// Ping verifies the MongoDB connection health using a ping command.
func (m *MongoDBClient) Ping(ctx context.Context) error {
	if m.client == nil {
		return fmt.Errorf("MongoDBClient is not connected")
	}
	return m.client.Ping(ctx, nil)
}

// EnsureSchema creates the index described by schema, a mongo.IndexModel.
// If the collection does not exist, it will be created automatically.
func (m *MongoDBClient) EnsureSchema(ctx context.Context, collectionName string, schema interfaces.Document) error {
	if err := m.ready(collectionName); err != nil {
		return err
	}
	model, ok := schema.(mongo.IndexModel)
	if !ok {
		return fmt.Errorf("EnsureSchema: expected mongo.IndexModel for MongoDB, got %T", schema)
	}
	_, err := m.db.Collection(collectionName).Indexes().CreateOne(ctx, model)
	return err
}

func (m *MongoDBClient) ready(collectionName string) error {
	if m.db == nil {
		return fmt.Errorf("MongoDBClient is not connected to a database")
	}
	if !m.validCollections[collectionName] {
		return fmt.Errorf("MongoDBClient: Invalid collection name: %s", collectionName)
	}
	return nil
}

// sanitizeDocument copies a map document keeping only allow-listed field names.
// Operator keys ("$...") and dotted paths are rejected to prevent NoSQL injection.
func (m *MongoDBClient) sanitizeDocument(document interfaces.Document) (bson.M, error) {
	docMap, ok := document.(map[string]interface{})
	if !ok {
		if b, isBSON := document.(bson.M); isBSON {
			docMap = b
		} else {
			return nil, fmt.Errorf("MongoDBClient: document must be map[string]interface{}, got %T", document)
		}
	}

	sanitized := bson.M{}
	for key, value := range docMap {
		if strings.ContainsAny(key, "$.") || !m.validFields[key] {
			return nil, fmt.Errorf("MongoDBClient: invalid or unsafe field name: %s", key)
		}
		sanitized[key] = value
	}
	return sanitized, nil
}

// getDBNameFromMongoDSN extracts the database name from a MongoDB DSN.
func getDBNameFromMongoDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse MongoDB DSN: %w", err)
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return "", fmt.Errorf("no database name found in MongoDB DSN path")
	}
	if idx := strings.Index(dbName, "/"); idx != -1 {
		dbName = dbName[:idx]
	}
	return dbName, nil
}

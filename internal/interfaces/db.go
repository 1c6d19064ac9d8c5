package interfaces

import (
	"context"
	"errors"
)

// ErrNoDocuments is returned by FindOne when nothing matches the filter.
var ErrNoDocuments = errors.New("no documents in result")

// Document is a generic interface to represent data that can be stored
// and retrieved from the database. Filters and updates are map[string]interface{}
// keyed by column/field name; results may be a pointer to a struct.
type Document interface{}

// DBClient defines the interface for a generic database client.
// It abstracts common database operations across different database types (e.g., MongoDB, SQL).
type DBClient interface {
	// Connect establishes a connection to the database.
	// It takes a context for cancellation and timeouts, and a DSN (Data Source Name) string.
	Connect(ctx context.Context, dsn string) error

	// Disconnect closes the database connection.
	Disconnect(ctx context.Context) error

	// InsertOne inserts a single document into the specified collection/table
	// and returns the identifier the store assigned to it.
	InsertOne(ctx context.Context, collectionName string, document Document) (interface{}, error)

	// FindOne decodes the first document (lowest id) matching filter into result.
	// Returns ErrNoDocuments if nothing matches.
	FindOne(ctx context.Context, collectionName string, filter Document, result Document) error

	// FindMany retrieves every document matching filter, ordered by id.
	// An empty filter matches all documents.
	FindMany(ctx context.Context, collectionName string, filter Document) ([]Document, error)

	// UpdateOne sets the fields in 'update' on the document matching filter.
	// Callers filter on a unique key. Returns the count of matched documents.
	UpdateOne(ctx context.Context, collectionName string, filter Document, update Document) (int64, error)

	// EnsureSchema applies a backend specific schema definition
	// (a DDL string for SQL, a mongo.IndexModel for MongoDB).
	EnsureSchema(ctx context.Context, collectionName string, schema Document) error

	// Ping checks the health of the database connection.
	Ping(ctx context.Context) error
}

package config

import (
	"context"
	"fmt"
	"os"
	"time"

	structValidator "github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/yaml.v3"
)

const (
	CONFIG_PATH = "./res/config.yaml"

	// ENV_PREFIX prefixes every environment override, e.g. DOORQUEST_PORT.
	ENV_PREFIX = "DOORQUEST_"

	DatabaseTypeSQLite   = "sqlite"
	DatabaseTypePostgres = "postgres"
	DatabaseTypeMongo    = "mongo"
)

// ServiceConfig holds the configuration for the service.
type ServiceConfig struct {
	ServiceName string               `yaml:"service_name" validate:"required"`
	LogLevel    string               `yaml:"loglevel" env:"LOG_LEVEL, overwrite" validate:"required"`
	Host        string               `yaml:"host" env:"HOST, overwrite"`
	Port        string               `yaml:"port" env:"PORT, overwrite" validate:"required"`
	Hasher      HasherConfig         `yaml:"hasher"`
	ProfilePics ProfilePictureConfig `yaml:"profile_pics" validate:"required"`
	Database    Database             `yaml:"database" validate:"required"`
}

type HasherConfig struct {
	// Cost is the bcrypt work factor; 0 means bcrypt.DefaultCost.
	Cost int `yaml:"cost" env:"BCRYPT_COST, overwrite" validate:"omitempty,min=4,max=31"`
}

type ProfilePictureConfig struct {
	Dir            string `yaml:"dir" env:"PROFILE_PICS_DIR, overwrite" validate:"required"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" validate:"required,gt=0"`
}

type Database struct {
	Type string `yaml:"type" env:"DATABASE_TYPE, overwrite" validate:"required,oneof=sqlite postgres mongo"`
	// For SQLite
	SQLite SQLiteConfig `yaml:"sqlite_config"`
	// For MongoDB
	MongoDB MongoDBConfig `yaml:"mongodb_config"`
	// For PostgreSQL
	Postgres PostgresConfig `yaml:"postgres_config"`
}

type SQLiteConfig struct {
	Path        string   `yaml:"path" env:"SQLITE_PATH, overwrite"`
	ValidTables []string `yaml:"valid_tables"`
	ValidFields []string `yaml:"valid_fields"`
}

type MongoDBConfig struct {
	DSN              string             `yaml:"dsn" env:"MONGO_DSN, overwrite"`
	DatabaseName     string             `yaml:"database_name"`
	Timeout          time.Duration      `yaml:"timeout"`
	Options          MongoServerOptions `yaml:"mongo_server_options"`
	ValidCollections []string           `yaml:"valid_collections"`
	ValidFields      []string           `yaml:"valid_fields"`
}

type PostgresConfig struct {
	DSN         string                `yaml:"dsn" env:"POSTGRES_DSN, overwrite"`
	Options     PostgresServerOptions `yaml:"postgres_server_options"`
	ValidTables []string              `yaml:"valid_tables"`
	ValidFields []string              `yaml:"valid_fields"`
}

type MongoServerOptions struct {
	APIVersion           string `yaml:"api_version"`
	SetStrict            bool   `yaml:"set_strict"`
	SetDeprecationErrors bool   `yaml:"set_deprecation_errors"`
}

type PostgresServerOptions struct {
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ReadLocalConfig reads the service configuration from a YAML file at the specified path.
// It unmarshals the YAML content into a ServiceConfig struct and returns it.
// If there is an error reading the file or unmarshaling the content, it returns an error.
func ReadLocalConfig(configPath string) (*ServiceConfig, error) {
	config := &ServiceConfig{}

	yamlFile, err := os.ReadFile(configPath) // #nosec G304
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(yamlFile, config)
	if err != nil {
		return nil, err
	}

	return config, nil
}

// LoadConfig reads the YAML file, applies DOORQUEST_* environment overrides
// from lookuper and validates the result. A nil lookuper reads the process environment.
func LoadConfig(ctx context.Context, configPath string, lookuper envconfig.Lookuper) (*ServiceConfig, error) {
	cfg, err := ReadLocalConfig(configPath)
	if err != nil {
		return nil, err
	}

	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: envconfig.PrefixLookuper(ENV_PREFIX, lookuper),
	}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := structValidator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if cfg.Database.DSN() == "" {
		return nil, fmt.Errorf("validation error: no connection string for database type %s", cfg.Database.Type)
	}

	return cfg, nil
}

// DSN returns the connection string of the selected database backend.
func (d Database) DSN() string {
	switch d.Type {
	case DatabaseTypeSQLite:
		return d.SQLite.Path
	case DatabaseTypePostgres:
		return d.Postgres.DSN
	case DatabaseTypeMongo:
		return d.MongoDB.DSN
	default:
		return ""
	}
}

func BuildServerAPIOptions(cfg MongoServerOptions) *options.ServerAPIOptions {
	opts := options.ServerAPI(options.ServerAPIVersion(cfg.APIVersion))
	opts.SetStrict(cfg.SetStrict)
	opts.SetDeprecationErrors(cfg.SetDeprecationErrors)

	return opts
}

func ListToMap(list []string) map[string]bool {
	result := make(map[string]bool)
	for _, item := range list {
		result[item] = true
	}
	return result
}

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	structValidator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-envconfig"

	"github.com/haguru/doorquest/config"
	"github.com/haguru/doorquest/internal/hasher"
	"github.com/haguru/doorquest/internal/interfaces"
	"github.com/haguru/doorquest/internal/middleware"
	"github.com/haguru/doorquest/internal/picstore"
	"github.com/haguru/doorquest/internal/routes"
	"github.com/haguru/doorquest/internal/server"
	mongoUserRepo "github.com/haguru/doorquest/internal/userrepo/mongo"
	"github.com/haguru/doorquest/internal/userrepo/sqlrepo"
	"github.com/haguru/doorquest/internal/userservice"
	"github.com/haguru/doorquest/pkg/databases/mongo"
	"github.com/haguru/doorquest/pkg/databases/postgres"
	"github.com/haguru/doorquest/pkg/databases/sqlite"
	"github.com/haguru/doorquest/pkg/metrics"
	"github.com/haguru/doorquest/pkg/zerolog"
)

// ShutdownTimeout bounds how long Run waits for in-flight requests.
var ShutdownTimeout = 10 * time.Second

// App represents the main application, containing server and configuration.
type App struct {
	Server   interfaces.Server
	Config   *config.ServiceConfig
	Logger   interfaces.Logger
	Metrics  interfaces.Metrics
	UserRepo interfaces.UserRepository
}

// NewApp loads the configuration at configPath, connects to the configured
// database and registers every route.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	return newApp(ctx, configPath, nil)
}

func newApp(ctx context.Context, configPath string, lookuper envconfig.Lookuper) (*App, error) {
	cfg, err := config.LoadConfig(ctx, configPath, lookuper)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := zerolog.NewZerologLogger(cfg.ServiceName)
	logger.SetLevel(cfg.LogLevel)

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: newMetrics(cfg.ServiceName),
	}

	userRepo, err := app.initializeUserRepo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize user repository: %w", err)
	}
	app.UserRepo = userRepo

	if err := app.initializeServer(); err != nil {
		_ = userRepo.Close(ctx)
		return nil, err
	}

	return app, nil
}

// Run serves requests until ctx is cancelled, then shuts the server down
// gracefully and closes the database.
func (app *App) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.Server.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serveErr:
		runErr = err
	case <-ctx.Done():
		app.Logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := app.Server.Shutdown(shutdownCtx); err != nil {
			runErr = err
		}
		if err := <-serveErr; err != nil {
			runErr = errors.Join(runErr, err)
		}
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := app.UserRepo.Close(closeCtx); err != nil {
		app.Logger.Error("Failed to close database", "error", err)
		runErr = errors.Join(runErr, err)
	}

	return runErr
}

func newMetrics(serviceName string) interfaces.Metrics {
	appMetrics := metrics.NewMetrics(serviceName)
	routes.RegisterMetrics(appMetrics)
	return appMetrics
}

func (app *App) initializeServer() error {
	cfg := app.Config

	bcryptHasher, err := hasher.NewBcryptHasher(cfg.Hasher.Cost)
	if err != nil {
		return fmt.Errorf("failed to initialize hasher: %w", err)
	}

	pictures, err := picstore.NewFileStore(cfg.ProfilePics.Dir)
	if err != nil {
		return fmt.Errorf("failed to initialize profile picture store: %w", err)
	}

	userService := userservice.NewUserService(app.UserRepo, bcryptHasher, pictures, app.Logger)
	route := routes.NewRoute(app.Metrics, userService, app.Logger, structValidator.New(), cfg.ProfilePics.MaxUploadBytes)

	app.Server = server.NewServer(cfg.Host, cfg.Port, cfg.ServiceName, app.Logger)
	app.Server.Use(middleware.RequestLogMiddleware(app.Logger))

	if err := route.AddRoutes(app.Server); err != nil {
		return err
	}

	metricsHandler := promhttp.HandlerFor(app.Metrics.GetRegistry(), promhttp.HandlerOpts{})
	if err := app.Server.AddRoute(routes.MetricsRouteAPI, metricsHandler.ServeHTTP); err != nil {
		return fmt.Errorf("failed to add metrics route: %w", err)
	}

	return nil
}

func (app *App) initializeDBClient() (interfaces.DBClient, error) {
	switch app.Config.Database.Type {
	case config.DatabaseTypeSQLite:
		return sqlite.NewSQLiteDatabaseClient(&app.Config.Database.SQLite), nil
	case config.DatabaseTypePostgres:
		return postgres.NewPostgresDatabaseClient(&app.Config.Database.Postgres), nil
	case config.DatabaseTypeMongo:
		return mongo.NewMongoDB(&app.Config.Database.MongoDB), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", app.Config.Database.Type)
	}
}

func (app *App) initializeUserRepo(ctx context.Context) (interfaces.UserRepository, error) {
	dbClient, err := app.initializeDBClient()
	if err != nil {
		return nil, err
	}

	if err := dbClient.Connect(ctx, app.Config.Database.DSN()); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", app.Config.Database.Type, err)
	}

	var userRepo interfaces.UserRepository
	switch app.Config.Database.Type {
	case config.DatabaseTypeSQLite:
		userRepo, err = sqlrepo.NewSQLUserRepository(dbClient, sqlrepo.SQLiteSchema)
	case config.DatabaseTypePostgres:
		userRepo, err = sqlrepo.NewSQLUserRepository(dbClient, sqlrepo.PostgresSchema)
	case config.DatabaseTypeMongo:
		userRepo, err = mongoUserRepo.NewMongoUserRepository(dbClient)
	}
	if err != nil {
		_ = dbClient.Disconnect(ctx)
		return nil, err
	}

	if err := userRepo.EnsureIndices(ctx); err != nil {
		_ = userRepo.Close(ctx)
		return nil, fmt.Errorf("failed to ensure indices: %w", err)
	}

	app.Logger.Info("Database ready", "type", app.Config.Database.Type)
	return userRepo, nil
}

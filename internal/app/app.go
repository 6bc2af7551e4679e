package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/storefront/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	Client *mongo.Client
	DB     *mongo.Database
}

// NewApp создаёт новый экземпляр App и проверяет доступность MongoDB
func NewApp(ctx context.Context, log *slog.Logger, cfg *config.Config) (*App, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Database.Timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.Database.URI).
		SetServerSelectionTimeout(cfg.Database.Timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	log.Info("connected to mongodb", slog.String("database", cfg.Database.Name))

	return &App{
		Config: cfg,
		Logger: log,
		Client: client,
		DB:     client.Database(cfg.Database.Name),
	}, nil
}

// Ping проверка для /healthz
func (a *App) Ping(ctx context.Context) error {
	return a.Client.Ping(ctx, readpref.Primary())
}

func (a *App) Close(ctx context.Context) error {
	return a.Client.Disconnect(ctx)
}

package testing

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/url-shortener/migrations"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	postgresImage = "postgres:16-alpine"
	redisImage    = "redis:7-alpine"
)

// SetupPostgresTestDB starts a PostgreSQL container and applies the embedded migrations
func SetupPostgresTestDB(ctx context.Context) (*TestDB, error) {
	container, err := tcpostgres.Run(ctx,
		postgresImage,
		tcpostgres.WithDatabase("shortener_test"),
		tcpostgres.WithUsername("shortener"),
		tcpostgres.WithPassword("shortener"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	terminate := func() error { return container.Terminate(context.Background()) }

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = terminate()
		return nil, fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	migrator, err := migrations.New(dsn, zerolog.Nop())
	if err != nil {
		_ = terminate()
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = terminate()
		return nil, err
	}
	_ = migrator.Close()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		_ = terminate()
		return nil, fmt.Errorf("failed to connect to postgres container: %w", err)
	}

	return &TestDB{
		DB:      db,
		Name:    "shortener_test",
		Backend: BackendPostgres,
		teardown: func() error {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
			return terminate()
		},
	}, nil
}

// TestRedis wraps a redis container and a connected client
type TestRedis struct {
	Client    *redis.Client
	container tc.Container
}

// SetupTestRedis starts a Redis container and pings it
func SetupTestRedis(ctx context.Context) (*TestRedis, error) {
	container, err := tcredis.Run(ctx, redisImage)
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get redis endpoint: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         endpoint,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &TestRedis{Client: client, container: container}, nil
}

// Teardown closes the client and terminates the container
func (tr *TestRedis) Teardown() error {
	_ = tr.Client.Close()
	return tr.container.Terminate(context.Background())
}

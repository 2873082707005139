package db

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultSQLitePath = "predictions.db"
)

// Config は推論履歴DBの接続設定です。
type Config struct {
	Driver       string // "postgres" または "sqlite"
	User         string
	Password     string
	Name         string
	Host         string
	Port         string
	SSLMode      string
	InstanceName string // Cloud SQL のインスタンス接続名（設定時は Unix ソケット経由）
	SQLitePath   string
}

// Opener はDSNからgormのDBを開く関数です。
type Opener func(dsn string) (*gorm.DB, error)

// LoadConfigFromEnv は環境変数から設定を読み込みます。
// DB_HOST も INSTANCE_CONNECTION_NAME も無い場合は SQLite を使います。
func LoadConfigFromEnv() Config {
	cfg := Config{
		Driver:       os.Getenv("DB_DRIVER"),
		User:         os.Getenv("DB_USER"),
		Password:     os.Getenv("DB_PASSWORD"),
		Name:         os.Getenv("DB_NAME"),
		Host:         os.Getenv("DB_HOST"),
		Port:         os.Getenv("DB_PORT"),
		SSLMode:      os.Getenv("DB_SSLMODE"),
		InstanceName: os.Getenv("INSTANCE_CONNECTION_NAME"),
		SQLitePath:   os.Getenv("SQLITE_PATH"),
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
		if cfg.Host != "" || cfg.InstanceName != "" {
			cfg.Driver = DriverPostgres
		}
	}
	return cfg
}

// BuildDSN はドライバに応じたDSN文字列を組み立てます。
func BuildDSN(cfg Config) string {
	if cfg.Driver == DriverSQLite {
		if cfg.SQLitePath == "" {
			return defaultSQLitePath
		}
		return cfg.SQLitePath
	}

	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	if cfg.InstanceName != "" {
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.InstanceName, cfg.User, cfg.Password, cfg.Name)
	}
	port := cfg.Port
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.Host, port, cfg.User, cfg.Password, cfg.Name, sslmode)
}

// ConnectWithRetry は timeout に達するまで指数バックオフで接続を再試行します。
func ConnectWithRetry(dsn string, timeout time.Duration, open Opener) (*gorm.DB, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 3 * time.Second
	bo.MaxElapsedTime = timeout

	var db *gorm.DB
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		var err error
		db, err = open(dsn)
		return err
	}, bo, func(err error, next time.Duration) {
		slog.Warn("DB connect failed, retrying", "attempt", attempt, "next_in", next, "error", err)
	})
	if err != nil {
		return nil, fmt.Errorf("db connect failed after %v (%d attempts): %w", timeout, attempt, err)
	}
	return db, nil
}

// Open は設定に従ってDBへ接続し、models をマイグレーションします。
func Open(cfg Config, timeout time.Duration, models ...any) (*gorm.DB, error) {
	var open Opener
	switch cfg.Driver {
	case DriverPostgres:
		open = func(dsn string) (*gorm.DB, error) {
			return gorm.Open(postgres.Open(dsn), &gorm.Config{})
		}
	case DriverSQLite, "":
		cfg.Driver = DriverSQLite
		open = func(dsn string) (*gorm.DB, error) {
			return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
		}
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}

	db, err := ConnectWithRetry(BuildDSN(cfg), timeout, open)
	if err != nil {
		return nil, err
	}

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}
	slog.Info("DB connection successful", "driver", cfg.Driver)
	return db, nil
}

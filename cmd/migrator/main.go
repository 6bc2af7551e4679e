package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mongodb"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/linemk/storefront/internal/config"
)

// buildMigrateDSN подставляет имя базы в путь URI и коллекцию для версий миграций
func buildMigrateDSN(dbCfg config.DatabaseConfig, migrationsCollection string) (string, error) {
	u, err := url.Parse(dbCfg.URI)
	if err != nil {
		return "", fmt.Errorf("invalid mongodb uri: %w", err)
	}
	u.Path = "/" + dbCfg.Name

	q := u.Query()
	q.Set("x-migrations-collection", migrationsCollection)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redact скрывает пароль при выводе DSN в лог
func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "<invalid dsn>"
	}
	return u.Redacted()
}

func main() {
	var configPath, migrationsPathFlag string
	var down bool
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&migrationsPathFlag, "migrations-path", "", "path to migration files")
	flag.BoolVar(&down, "down", false, "roll back all migrations")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	cfg := config.MustLoadByPath(configPath)

	migrationsPath := cfg.Migrations.Path
	if migrationsPathFlag != "" {
		migrationsPath = migrationsPathFlag
	}

	dsn, err := buildMigrateDSN(cfg.Database, cfg.Migrations.Collection)
	if err != nil {
		log.Fatalf("failed to build dsn: %v", err)
	}
	log.Printf("Using DSN for migrate: %s", redact(dsn))

	// Создаем объект мигратора
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		log.Fatalf("failed to create migrate instance: %v", err)
	}
	defer m.Close()

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("No migrations to apply")
			return
		}
		log.Fatalf("migration failed: %v", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Fatalf("failed to read migration version: %v", err)
	}
	log.Printf("Migrations applied successfully, version=%d dirty=%t", version, dirty)
}

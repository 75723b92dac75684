package migrations

import (
	"embed"
	"fmt"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed mysql/*.sql postgres/*.sql
var files embed.FS

const (
	TargetMySQL    = "mysql"
	TargetPostgres = "postgres"
)

// Migrator applies the embedded schema to one database.
type Migrator struct {
	migrate *migrate.Migrate
	target  string
	logger  *zap.Logger
}

// New builds a migrator for target using the application DSN of that database.
func New(target, dsn string, logger *zap.Logger) (*Migrator, error) {
	url, err := databaseURL(target, dsn)
	if err != nil {
		return nil, err
	}

	src, err := iofs.New(files, target)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s migrations: %w", target, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &Migrator{migrate: m, target: target, logger: logger}, nil
}

// databaseURL turns an application DSN into the URL form golang-migrate expects.
func databaseURL(target, dsn string) (string, error) {
	switch target {
	case TargetMySQL:
		cfg, err := gomysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		cfg.MultiStatements = true
		return "mysql://" + cfg.FormatDSN(), nil
	case TargetPostgres:
		for _, scheme := range []string{"postgres://", "postgresql://"} {
			if strings.HasPrefix(dsn, scheme) {
				return "pgx5://" + strings.TrimPrefix(dsn, scheme), nil
			}
		}
		return "", fmt.Errorf("postgres dsn must be a URL, got %q", dsn)
	default:
		return "", fmt.Errorf("unknown migration target %q", target)
	}
}

// Up runs all pending migrations.
func (m *Migrator) Up() error {
	m.logger.Info("running migrations up", zap.String("target", m.target))

	err := m.migrate.Up()
	if err == migrate.ErrNoChange {
		m.logger.Info("no migrations to apply", zap.String("target", m.target))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, dirty, err := m.migrate.Version()
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	m.logger.Info("migrations completed",
		zap.String("target", m.target),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Down rolls back all migrations.
func (m *Migrator) Down() error {
	m.logger.Warn("running migrations down", zap.String("target", m.target))

	err := m.migrate.Down()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("failed to close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}

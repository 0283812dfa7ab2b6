// Package store opens the configured database and exposes its repositories.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pollsite/backend/config"
	"github.com/pollsite/backend/internal/auth"
	"github.com/pollsite/backend/internal/questions"
	"github.com/pollsite/backend/pkg/database"
)

// Store bundles the repositories of one database connection.
type Store struct {
	Driver    string
	Questions questions.Repository
	Users     auth.Repository

	pool *pgxpool.Pool
	db   *gorm.DB
	// set for the gorm drivers, which migrate per repository
	migrators []interface{ Migrate(context.Context) error }
}

// Open connects to the database named by cfg. postgres uses pgx; sqlite and mysql use gorm.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg.DSN(), logger)
		if err != nil {
			return nil, err
		}
		return &Store{
			Driver:    cfg.Driver,
			Questions: questions.NewPostgresRepository(pool),
			Users:     auth.NewPostgresRepository(pool),
			pool:      pool,
		}, nil
	case "sqlite", "mysql":
		db, err := database.OpenGorm(cfg.Driver, cfg.DSN(), logger)
		if err != nil {
			return nil, err
		}
		users := auth.NewGormRepository(db)
		qs := questions.NewGormRepository(db)
		return &Store{
			Driver:    cfg.Driver,
			Questions: qs,
			Users:     users,
			db:        db,
			migrators: []interface{ Migrate(context.Context) error }{users, qs},
		}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if s.pool != nil {
		return database.Migrate(ctx, s.pool)
	}
	for _, m := range s.migrators {
		if err := m.Migrate(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
		return nil
	}
	if s.db != nil {
		return database.CloseGorm(s.db)
	}
	return errors.New("store not open")
}

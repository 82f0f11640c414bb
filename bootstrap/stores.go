package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ryoda0314/tutoring-app-sub000/adapters/memory"
	"github.com/ryoda0314/tutoring-app-sub000/adapters/postgres"
	"github.com/ryoda0314/tutoring-app-sub000/adapters/redislock"
	"github.com/ryoda0314/tutoring-app-sub000/adapters/sqlite"
	"github.com/ryoda0314/tutoring-app-sub000/config"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// Stores groups the persistence ports backed by one database.
type Stores struct {
	Driver   string
	Lessons  ports.LessonStore
	Charges  ports.ChargeStore
	Credits  ports.CreditStore
	Payments ports.PaymentStore

	db database
}

// database is the part of sqlite.DB and postgres.DB the bootstrap needs.
type database interface {
	Migrate() error
	Ping(ctx context.Context) error
	Close() error
}

// Ping checks the underlying database.
func (s *Stores) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the underlying database.
func (s *Stores) Close() error {
	return s.db.Close()
}

// OpenStores connects to the configured database and runs pending migrations.
func OpenStores(ctx context.Context, cfg config.DatabaseConfig) (*Stores, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &Stores{
			Driver:   cfg.Driver,
			Lessons:  sqlite.NewLessonStore(db),
			Charges:  sqlite.NewChargeStore(db),
			Credits:  sqlite.NewCreditStore(db),
			Payments: sqlite.NewPaymentStore(db),
			db:       db,
		}, nil

	case "postgres":
		db, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &Stores{
			Driver:   cfg.Driver,
			Lessons:  postgres.NewLessonStore(db),
			Charges:  postgres.NewChargeStore(db),
			Credits:  postgres.NewCreditStore(db),
			Payments: postgres.NewPaymentStore(db),
			db:       db,
		}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// LockCloser is a ports.Locker that may hold a connection.
type LockCloser interface {
	ports.Locker
	Close() error
}

type nopCloser struct{ ports.Locker }

func (nopCloser) Close() error { return nil }

// OpenLocker builds the per-student locker for the configured mode.
func OpenLocker(ctx context.Context, cfg config.LockingConfig, logger zerolog.Logger) (LockCloser, error) {
	switch cfg.Mode {
	case "memory":
		return nopCloser{memory.NewLocker(0)}, nil
	case "redis":
		l, err := redislock.New(ctx, redislock.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.TTL,
		}, logger)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	return nil, fmt.Errorf("unsupported locking mode %q", cfg.Mode)
}

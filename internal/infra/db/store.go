// Package db persists identity and audit state in Postgres via gorm.
package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Khaledaun/orion-content-sub000/internal/config"
	"github.com/Khaledaun/orion-content-sub000/internal/infra/logging"
)

type Store struct {
	DB *gorm.DB
}

// NewStore connects to Postgres, or starts in no-db mode when no DSN is
// configured so the gateway can run with in-memory collaborators.
func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		logging.Info("db", "POSTGRES_DSN not set; starting in no-db mode")
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Store{DB: gdb}, nil
}

// AutoMigrate creates or updates the gateway's tables.
func (s *Store) AutoMigrate() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.AutoMigrate(
		&ScopedTokenModel{},
		&RoleGrantModel{},
		&SessionModel{},
		&AuditEventModel{},
	)
}

func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

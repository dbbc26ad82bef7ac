package db

import (
	"database/sql"

	libdb "meterpay/backend/libs/db"
	"meterpay/backend/services/billing-service/internal/config"
)

// NewPostgres opens the ledger connection pool from config.
func NewPostgres(cfg *config.Config) (*sql.DB, error) {
	return libdb.NewPostgresDB(cfg.Database.DSN, libdb.PoolOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		ConnLifetime: cfg.Database.ConnLifetime,
	})
}

package database

import (
	"copro-backend/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens a GORM DB from DSN (Postgres or a pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") behind PgBouncer-style poolers.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
}

// Models lists every persisted type, parents before children.
func Models() []interface{} {
	return []interface{}{
		&domain.User{},
		&domain.Building{},
		&domain.Owner{},
		&domain.Exercise{},
		&domain.ChargeDefinition{},
		&domain.Exclusion{},
		&domain.CustomQuota{},
		&domain.BillingCall{},
		&domain.Payment{},
	}
}

// AutoMigrate creates or updates the tables of every model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"copro-backend/internal/domain"
	"copro-backend/internal/infrastructure/database"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory SQLite database. A single connection keeps
// every query on the same in-memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// Building inserts a building named nom.
func Building(t *testing.T, db *gorm.DB, nom string) domain.Building {
	t.Helper()
	b := domain.Building{Nom: nom, Adresse: "1 rue de la Paix", CodePostal: "75002", Ville: "Paris"}
	require.NoError(t, db.Create(&b).Error)
	return b
}

// Owner inserts an owner of building b.
func Owner(t *testing.T, db *gorm.DB, b domain.Building, nom string, milliemes int) domain.Owner {
	t.Helper()
	o := domain.Owner{BuildingID: b.ID, Prenom: "P" + nom, Nom: nom, Milliemes: milliemes}
	require.NoError(t, db.Create(&o).Error)
	return o
}

// Charge inserts an active charge of building b.
func Charge(t *testing.T, db *gorm.DB, b domain.Building, typ domain.ChargeType, annual string, freq domain.Frequency, key domain.RepartitionKey) domain.ChargeDefinition {
	t.Helper()
	c := domain.ChargeDefinition{
		BuildingID:     b.ID,
		Type:           typ,
		Libelle:        string(typ),
		MontantAnnuel:  decimal.RequireFromString(annual),
		Frequence:      freq,
		CleRepartition: key,
		Actif:          true,
	}
	require.NoError(t, db.Create(&c).Error)
	return c
}

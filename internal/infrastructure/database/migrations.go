package database

import (
	"fmt"
	"sort"
	"time"

	"copro-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SchemaMigration records one applied migration.
type SchemaMigration struct {
	Version   int       `gorm:"column:version;primaryKey;autoIncrement:false"`
	Name      string    `gorm:"column:name;not null"`
	AppliedAt time.Time `gorm:"column:applied_at;not null"`
}

func (SchemaMigration) TableName() string {
	return "schema_migrations"
}

// Migration is one schema or data step. Steps run in version order, each in its own transaction.
type Migration struct {
	Version int
	Name    string
	Up      func(tx *gorm.DB) error
}

var migrations = []Migration{
	{Version: 1, Name: "core schema", Up: AutoMigrate},
	{Version: 2, Name: "backfill payment history", Up: backfillPayments},
}

// RunMigrations applies every migration not yet recorded in schema_migrations
// and returns the versions it applied.
func RunMigrations(db *gorm.DB) ([]int, error) {
	return runMigrations(db, migrations)
}

func runMigrations(db *gorm.DB, steps []Migration) ([]int, error) {
	log.Info().Msg("Running database migrations...")
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return nil, err
	}
	var done []SchemaMigration
	if err := db.Find(&done).Error; err != nil {
		return nil, err
	}
	seen := make(map[int]bool, len(done))
	for _, m := range done {
		seen[m.Version] = true
	}

	ordered := append([]Migration(nil), steps...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })

	var applied []int
	for _, m := range ordered {
		if seen[m.Version] {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{Version: m.Version, Name: m.Name, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			log.Error().Err(err).Int("version", m.Version).Str("name", m.Name).Msg("migration failed")
			return applied, fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("migration applied")
		applied = append(applied, m.Version)
	}
	log.Info().Int("applied", len(applied)).Msg("Database migrations completed")
	return applied, nil
}

// backfillPayments gives calls paid before the payment history existed one
// synthetic history row carrying their paid amount.
func backfillPayments(tx *gorm.DB) error {
	var calls []domain.BillingCall
	err := tx.Where("montant_paye > 0 AND id NOT IN (?)", tx.Model(&domain.Payment{}).Select("appel_id")).
		Find(&calls).Error
	if err != nil {
		return err
	}
	for _, c := range calls {
		paidAt := c.UpdatedAt
		if c.DatePaiement != nil {
			paidAt = *c.DatePaiement
		}
		p := domain.Payment{
			BillingCallID: c.ID,
			Montant:       c.MontantPaye,
			Reference:     c.ReferencePaiement,
			PaidAt:        paidAt,
			Metadata:      datatypes.JSON(`{"source":"backfill"}`),
		}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
	}
	return nil
}

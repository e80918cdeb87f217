package charges

import (
	"context"
	"errors"
	"strings"
	"time"

	"copro-backend/internal/application/apportionment"
	"copro-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service manages the charge catalog of a building: definitions, exclusions
// and custom quotas.
type Service struct {
	DB *gorm.DB
}

// ChargeInput carries every editable field of a charge. Update replaces all of
// them and drops exclusions or quotas the new type or key no longer allows.
type ChargeInput struct {
	ExerciseID     *uuid.UUID
	Type           domain.ChargeType
	Libelle        string
	Description    string
	MontantAnnuel  decimal.Decimal
	Frequence      domain.Frequency
	CleRepartition domain.RepartitionKey
	Actif          *bool
	DateDebut      *time.Time
	DateFin        *time.Time
}

type QuotaInput struct {
	OwnerID   uuid.UUID
	QuotePart decimal.Decimal
}

func (in ChargeInput) apply(c *domain.ChargeDefinition) {
	c.ExerciseID = in.ExerciseID
	c.Type = in.Type
	c.Libelle = strings.TrimSpace(in.Libelle)
	c.Description = in.Description
	c.MontantAnnuel = in.MontantAnnuel.Round(2)
	c.Frequence = in.Frequence
	c.CleRepartition = in.CleRepartition
	c.Actif = in.Actif == nil || *in.Actif
	c.DateDebut = dateOnlyPtr(in.DateDebut)
	c.DateFin = dateOnlyPtr(in.DateFin)
}

func (s *Service) CreateCharge(ctx context.Context, buildingID uuid.UUID, in ChargeInput) (*domain.ChargeDefinition, error) {
	charge := domain.ChargeDefinition{BuildingID: buildingID}
	in.apply(&charge)
	if err := charge.Validate(); err != nil {
		return nil, err
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := apportionment.EnsureBuilding(tx, buildingID); err != nil {
			return err
		}
		if err := ensureExercise(tx, buildingID, charge.ExerciseID); err != nil {
			return err
		}
		return tx.Create(&charge).Error
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("charge_id", charge.ID.String()).Str("immeuble_id", buildingID.String()).Msg("charge created")
	return &charge, nil
}

// ListCharges returns every charge of a building, active or not.
func (s *Service) ListCharges(ctx context.Context, buildingID uuid.UUID) ([]domain.ChargeDefinition, error) {
	db := s.DB.WithContext(ctx)
	if err := apportionment.EnsureBuilding(db, buildingID); err != nil {
		return nil, err
	}
	out := []domain.ChargeDefinition{}
	if err := db.Where("immeuble_id = ?", buildingID).Order(`"createdAt" ASC, id ASC`).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) GetCharge(ctx context.Context, id uuid.UUID) (*domain.ChargeDefinition, error) {
	return findCharge(s.DB.WithContext(ctx), id)
}

func (s *Service) UpdateCharge(ctx context.Context, id uuid.UUID, in ChargeInput) (*domain.ChargeDefinition, error) {
	var charge *domain.ChargeDefinition
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if charge, err = findCharge(tx, id); err != nil {
			return err
		}
		prevType, prevKey := charge.Type, charge.CleRepartition
		in.apply(charge)
		if err := charge.Validate(); err != nil {
			return err
		}
		if err := ensureExercise(tx, charge.BuildingID, charge.ExerciseID); err != nil {
			return err
		}
		// Rules the new type or key no longer allows are dropped.
		if prevType == domain.ChargesSpeciales && charge.Type != domain.ChargesSpeciales {
			if err := tx.Where("charge_id = ?", id).Delete(&domain.Exclusion{}).Error; err != nil {
				return err
			}
		}
		if prevKey == domain.KeyCustom && charge.CleRepartition != domain.KeyCustom {
			if err := tx.Where("charge_id = ?", id).Delete(&domain.CustomQuota{}).Error; err != nil {
				return err
			}
		}
		return tx.Save(charge).Error
	})
	if err != nil {
		return nil, err
	}
	return charge, nil
}

// DeleteCharge removes a charge with its exclusions, quotas and unpaid billing
// calls. A charge with any paid call cannot be deleted.
func (s *Service) DeleteCharge(ctx context.Context, id uuid.UUID) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findCharge(tx, id); err != nil {
			return err
		}
		scope := tx.Model(&domain.BillingCall{}).Where("charge_id = ?", id)
		if err := RefuseIfPaid(scope, "Charge has paid billing calls"); err != nil {
			return err
		}
		return DeleteChargesCascade(tx, []uuid.UUID{id})
	})
	if err != nil {
		return err
	}
	log.Info().Str("charge_id", id.String()).Msg("charge deleted")
	return nil
}

func (s *Service) ListExclusions(ctx context.Context, chargeID uuid.UUID) ([]domain.Exclusion, error) {
	db := s.DB.WithContext(ctx)
	if _, err := findCharge(db, chargeID); err != nil {
		return nil, err
	}
	out := []domain.Exclusion{}
	if err := db.Where("charge_id = ?", chargeID).Order(`"createdAt" ASC`).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// AddExclusion exempts an owner from a charges_speciales charge.
func (s *Service) AddExclusion(ctx context.Context, chargeID, ownerID uuid.UUID, motif *string) (*domain.Exclusion, error) {
	excl := domain.Exclusion{ChargeID: chargeID, OwnerID: ownerID, Motif: motif}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		charge, err := findCharge(tx, chargeID)
		if err != nil {
			return err
		}
		if charge.Type != domain.ChargesSpeciales {
			return domain.Invalid("Exclusions are only allowed on charges_speciales")
		}
		if err := ensureOwnerOf(tx, charge.BuildingID, ownerID); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&domain.Exclusion{}).Where("charge_id = ? AND proprietaire_id = ?", chargeID, ownerID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.Conflict("Owner is already excluded from this charge")
		}
		return tx.Create(&excl).Error
	})
	if err != nil {
		return nil, err
	}
	return &excl, nil
}

func (s *Service) RemoveExclusion(ctx context.Context, chargeID, ownerID uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findCharge(tx, chargeID); err != nil {
			return err
		}
		r := tx.Where("charge_id = ? AND proprietaire_id = ?", chargeID, ownerID).Delete(&domain.Exclusion{})
		if r.Error != nil {
			return r.Error
		}
		if r.RowsAffected == 0 {
			return domain.NotFound("Exclusion not found")
		}
		return nil
	})
}

func (s *Service) ListQuotas(ctx context.Context, chargeID uuid.UUID) ([]domain.CustomQuota, error) {
	db := s.DB.WithContext(ctx)
	if _, err := findCharge(db, chargeID); err != nil {
		return nil, err
	}
	out := []domain.CustomQuota{}
	if err := db.Where("charge_id = ?", chargeID).Order(`"createdAt" ASC, id ASC`).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceQuotas swaps the whole quota set of a custom charge. Owners left out
// of the set carry no share of the charge.
func (s *Service) ReplaceQuotas(ctx context.Context, chargeID uuid.UUID, in []QuotaInput) ([]domain.CustomQuota, error) {
	seen := make(map[uuid.UUID]bool, len(in))
	rows := make([]domain.CustomQuota, 0, len(in))
	for _, q := range in {
		if !q.QuotePart.IsPositive() {
			return nil, domain.Invalid("quote_part must be greater than zero")
		}
		if seen[q.OwnerID] {
			return nil, domain.Invalid("Duplicate quota for proprietaire %s", q.OwnerID)
		}
		seen[q.OwnerID] = true
		rows = append(rows, domain.CustomQuota{ChargeID: chargeID, OwnerID: q.OwnerID, QuotePart: q.QuotePart})
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		charge, err := findCharge(tx, chargeID)
		if err != nil {
			return err
		}
		if charge.CleRepartition != domain.KeyCustom {
			return domain.Invalid("Quotas are only allowed on charges with a custom repartition key")
		}
		for _, q := range rows {
			if err := ensureOwnerOf(tx, charge.BuildingID, q.OwnerID); err != nil {
				return err
			}
		}
		if err := tx.Where("charge_id = ?", chargeID).Delete(&domain.CustomQuota{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// RefuseIfPaid fails with a Conflict when scope, a billing-call query, holds any paid call.
func RefuseIfPaid(scope *gorm.DB, message string) error {
	var paid int64
	if err := scope.Where("montant_paye > 0").Count(&paid).Error; err != nil {
		return err
	}
	if paid > 0 {
		return domain.Conflict("%s", message)
	}
	return nil
}

// DeleteChargesCascade deletes charges and everything hanging off them.
func DeleteChargesCascade(tx *gorm.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	calls := tx.Model(&domain.BillingCall{}).Select("id").Where("charge_id IN ?", ids)
	if err := tx.Where("appel_id IN (?)", calls).Delete(&domain.Payment{}).Error; err != nil {
		return err
	}
	steps := []interface{}{&domain.BillingCall{}, &domain.Exclusion{}, &domain.CustomQuota{}}
	for _, model := range steps {
		if err := tx.Where("charge_id IN ?", ids).Delete(model).Error; err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", ids).Delete(&domain.ChargeDefinition{}).Error
}

func findCharge(tx *gorm.DB, id uuid.UUID) (*domain.ChargeDefinition, error) {
	var c domain.ChargeDefinition
	if err := tx.Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound("Charge not found")
		}
		return nil, err
	}
	return &c, nil
}

func ensureExercise(tx *gorm.DB, buildingID uuid.UUID, exerciseID *uuid.UUID) error {
	if exerciseID == nil {
		return nil
	}
	var count int64
	if err := tx.Model(&domain.Exercise{}).Where("id = ? AND immeuble_id = ?", *exerciseID, buildingID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.Invalid("Exercise does not belong to this building")
	}
	return nil
}

func ensureOwnerOf(tx *gorm.DB, buildingID, ownerID uuid.UUID) error {
	var count int64
	if err := tx.Model(&domain.Owner{}).Where("id = ? AND immeuble_id = ?", ownerID, buildingID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.Invalid("Proprietaire %s does not belong to this building", ownerID)
	}
	return nil
}

func dateOnlyPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := domain.DateOnly(*t)
	return &d
}

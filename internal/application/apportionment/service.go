package apportionment

import (
	"context"
	"errors"
	"time"

	"copro-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service computes repartitions from the current store state. Nothing is cached
// between calls so edits are visible on the next computation.
type Service struct {
	DB *gorm.DB
}

// Query selects what a computation covers.
type Query struct {
	BuildingID uuid.UUID
	AsOf       time.Time
	ExerciseID *uuid.UUID
}

// ComputeRepartition returns each owner's annual and monthly liability.
func (s *Service) ComputeRepartition(ctx context.Context, q Query) (*Result, error) {
	var res *Result
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		in, err := LoadInput(tx, q.BuildingID, q.ExerciseID)
		if err != nil {
			return err
		}
		res = Compute(*in, q.AsOf)
		return nil
	})
	return res, err
}

// ChargeTotals returns the nominal per-type totals of the active charges.
func (s *Service) ChargeTotals(ctx context.Context, q Query) (TypeTotals, error) {
	db := s.DB.WithContext(ctx)
	if err := EnsureBuilding(db, q.BuildingID); err != nil {
		return nil, err
	}
	charges, err := activeCharges(db, q.BuildingID, q.ExerciseID)
	if err != nil {
		return nil, err
	}
	return Totals(charges, q.AsOf), nil
}

// LoadInput reads charges, owners, exclusions and quotas of a building.
func LoadInput(tx *gorm.DB, buildingID uuid.UUID, exerciseID *uuid.UUID) (*Input, error) {
	if err := EnsureBuilding(tx, buildingID); err != nil {
		return nil, err
	}
	charges, err := activeCharges(tx, buildingID, exerciseID)
	if err != nil {
		return nil, err
	}
	var owners []domain.Owner
	if err := tx.Where("immeuble_id = ?", buildingID).Order("nom ASC, prenom ASC, id ASC").Find(&owners).Error; err != nil {
		return nil, err
	}
	in := &Input{Charges: charges, Owners: owners}
	if len(charges) == 0 {
		return in, nil
	}
	ids := make([]uuid.UUID, 0, len(charges))
	for _, c := range charges {
		ids = append(ids, c.ID)
	}
	in.Exclusions, in.Quotas, err = LoadRules(tx, ids)
	if err != nil {
		return nil, err
	}
	return in, nil
}

// LoadRules reads exclusions and custom quotas for the given charges.
func LoadRules(tx *gorm.DB, chargeIDs []uuid.UUID) ([]domain.Exclusion, []domain.CustomQuota, error) {
	var exclusions []domain.Exclusion
	if err := tx.Where("charge_id IN ?", chargeIDs).Find(&exclusions).Error; err != nil {
		return nil, nil, err
	}
	var quotas []domain.CustomQuota
	if err := tx.Where("charge_id IN ?", chargeIDs).Find(&quotas).Error; err != nil {
		return nil, nil, err
	}
	return exclusions, quotas, nil
}

// EnsureBuilding fails with a NotFound error when the building does not exist.
func EnsureBuilding(tx *gorm.DB, buildingID uuid.UUID) error {
	var b domain.Building
	if err := tx.Select("id").Where("id = ?", buildingID).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NotFound("Building not found")
		}
		return err
	}
	return nil
}

func activeCharges(tx *gorm.DB, buildingID uuid.UUID, exerciseID *uuid.UUID) ([]domain.ChargeDefinition, error) {
	q := tx.Where("immeuble_id = ? AND actif = ?", buildingID, true)
	if exerciseID != nil {
		q = q.Where("exercice_id = ? OR exercice_id IS NULL", *exerciseID)
	}
	var charges []domain.ChargeDefinition
	if err := q.Order(`"createdAt" ASC, id ASC`).Find(&charges).Error; err != nil {
		return nil, err
	}
	return charges, nil
}

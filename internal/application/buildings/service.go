package buildings

import (
	"context"
	"errors"
	"strings"
	"time"

	"copro-backend/internal/application/apportionment"
	"copro-backend/internal/application/charges"
	"copro-backend/internal/domain"
	"copro-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service manages buildings with their owners and exercises.
type Service struct {
	DB *gorm.DB
}

type BuildingInput struct {
	Nom        string
	Adresse    string
	CodePostal string
	Ville      string
}

type OwnerInput struct {
	Prenom    string
	Nom       string
	Email     *string
	Milliemes int
}

type ExerciseInput struct {
	Libelle   string
	DateDebut time.Time
	DateFin   time.Time
	Cloture   bool
}

// BuildingSummary is a building with the aggregates shown in listings.
type BuildingSummary struct {
	domain.Building
	NbProprietaires int `json:"nb_proprietaires"`
	TotalMilliemes  int `json:"total_milliemes"`
}

func (in BuildingInput) validate() error {
	if strings.TrimSpace(in.Nom) == "" {
		return domain.Invalid("nom is required")
	}
	if strings.TrimSpace(in.Adresse) == "" {
		return domain.Invalid("adresse is required")
	}
	return nil
}

func (in BuildingInput) apply(b *domain.Building) {
	b.Nom = strings.TrimSpace(in.Nom)
	b.Adresse = strings.TrimSpace(in.Adresse)
	b.CodePostal = strings.TrimSpace(in.CodePostal)
	b.Ville = strings.TrimSpace(in.Ville)
}

func (in OwnerInput) validate() error {
	if strings.TrimSpace(in.Prenom) == "" || strings.TrimSpace(in.Nom) == "" {
		return domain.Invalid("prenom and nom are required")
	}
	if in.Milliemes < 0 {
		return domain.Invalid("milliemes must not be negative")
	}
	if in.Email != nil {
		if e := strings.TrimSpace(*in.Email); e != "" && !validation.IsValidEmail(e) {
			return domain.Invalid("Invalid email format")
		}
	}
	return nil
}

func (in OwnerInput) apply(o *domain.Owner) {
	o.Prenom = strings.TrimSpace(in.Prenom)
	o.Nom = strings.TrimSpace(in.Nom)
	o.Milliemes = in.Milliemes
	o.Email = nil
	if in.Email != nil && strings.TrimSpace(*in.Email) != "" {
		e := strings.ToLower(strings.TrimSpace(*in.Email))
		o.Email = &e
	}
}

func (s *Service) CreateBuilding(ctx context.Context, in BuildingInput) (*domain.Building, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var b domain.Building
	in.apply(&b)
	if err := s.DB.WithContext(ctx).Create(&b).Error; err != nil {
		return nil, err
	}
	log.Info().Str("immeuble_id", b.ID.String()).Msg("building created")
	return &b, nil
}

// ListBuildings returns every building by name with owner count and millieme total.
func (s *Service) ListBuildings(ctx context.Context) ([]BuildingSummary, error) {
	db := s.DB.WithContext(ctx)
	var list []domain.Building
	if err := db.Order("nom ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	type agg struct {
		BuildingID uuid.UUID `gorm:"column:immeuble_id"`
		Count      int       `gorm:"column:nb"`
		Total      int       `gorm:"column:total"`
	}
	var rows []agg
	err := db.Model(&domain.Owner{}).
		Select("immeuble_id, COUNT(*) AS nb, COALESCE(SUM(milliemes), 0) AS total").
		Group("immeuble_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	byBuilding := make(map[uuid.UUID]agg, len(rows))
	for _, r := range rows {
		byBuilding[r.BuildingID] = r
	}
	out := make([]BuildingSummary, 0, len(list))
	for _, b := range list {
		a := byBuilding[b.ID]
		out = append(out, BuildingSummary{Building: b, NbProprietaires: a.Count, TotalMilliemes: a.Total})
	}
	return out, nil
}

func (s *Service) GetBuilding(ctx context.Context, id uuid.UUID) (*domain.Building, error) {
	return findBuilding(s.DB.WithContext(ctx), id)
}

func (s *Service) UpdateBuilding(ctx context.Context, id uuid.UUID, in BuildingInput) (*domain.Building, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var b *domain.Building
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if b, err = findBuilding(tx, id); err != nil {
			return err
		}
		in.apply(b)
		return tx.Save(b).Error
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// DeleteBuilding removes a building and everything it owns. Refused when any
// billing call of the building has been paid.
func (s *Service) DeleteBuilding(ctx context.Context, id uuid.UUID) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findBuilding(tx, id); err != nil {
			return err
		}
		scope := tx.Model(&domain.BillingCall{}).Where("immeuble_id = ?", id)
		if err := charges.RefuseIfPaid(scope, "Building has paid billing calls"); err != nil {
			return err
		}
		var chargeIDs []uuid.UUID
		if err := tx.Model(&domain.ChargeDefinition{}).Where("immeuble_id = ?", id).Pluck("id", &chargeIDs).Error; err != nil {
			return err
		}
		if err := charges.DeleteChargesCascade(tx, chargeIDs); err != nil {
			return err
		}
		if err := tx.Where("immeuble_id = ?", id).Delete(&domain.Exercise{}).Error; err != nil {
			return err
		}
		if err := tx.Where("immeuble_id = ?", id).Delete(&domain.Owner{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Building{}).Error
	})
	if err != nil {
		return err
	}
	log.Info().Str("immeuble_id", id.String()).Msg("building deleted")
	return nil
}

func (s *Service) CreateOwner(ctx context.Context, buildingID uuid.UUID, in OwnerInput) (*domain.Owner, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	o := domain.Owner{BuildingID: buildingID}
	in.apply(&o)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := apportionment.EnsureBuilding(tx, buildingID); err != nil {
			return err
		}
		return tx.Create(&o).Error
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Service) ListOwners(ctx context.Context, buildingID uuid.UUID) ([]domain.Owner, error) {
	db := s.DB.WithContext(ctx)
	if err := apportionment.EnsureBuilding(db, buildingID); err != nil {
		return nil, err
	}
	out := []domain.Owner{}
	if err := db.Where("immeuble_id = ?", buildingID).Order("nom ASC, prenom ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) UpdateOwner(ctx context.Context, id uuid.UUID, in OwnerInput) (*domain.Owner, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var o *domain.Owner
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if o, err = findOwner(tx, id); err != nil {
			return err
		}
		in.apply(o)
		return tx.Save(o).Error
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// DeleteOwner removes an owner with their exclusions, quotas and unpaid calls.
func (s *Service) DeleteOwner(ctx context.Context, id uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findOwner(tx, id); err != nil {
			return err
		}
		scope := tx.Model(&domain.BillingCall{}).Where("proprietaire_id = ?", id)
		if err := charges.RefuseIfPaid(scope, "Owner has paid billing calls"); err != nil {
			return err
		}
		calls := tx.Model(&domain.BillingCall{}).Select("id").Where("proprietaire_id = ?", id)
		if err := tx.Where("appel_id IN (?)", calls).Delete(&domain.Payment{}).Error; err != nil {
			return err
		}
		for _, model := range []interface{}{&domain.BillingCall{}, &domain.Exclusion{}, &domain.CustomQuota{}} {
			if err := tx.Where("proprietaire_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).Delete(&domain.Owner{}).Error
	})
}

func (s *Service) CreateExercise(ctx context.Context, buildingID uuid.UUID, in ExerciseInput) (*domain.Exercise, error) {
	if strings.TrimSpace(in.Libelle) == "" {
		return nil, domain.Invalid("libelle is required")
	}
	if in.DateDebut.IsZero() || in.DateFin.IsZero() {
		return nil, domain.Invalid("date_debut and date_fin are required")
	}
	ex := domain.Exercise{
		BuildingID: buildingID,
		Libelle:    strings.TrimSpace(in.Libelle),
		DateDebut:  domain.DateOnly(in.DateDebut),
		DateFin:    domain.DateOnly(in.DateFin),
		Cloture:    in.Cloture,
	}
	if ex.DateFin.Before(ex.DateDebut) {
		return nil, domain.Invalid("date_fin must not be before date_debut")
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := apportionment.EnsureBuilding(tx, buildingID); err != nil {
			return err
		}
		return tx.Create(&ex).Error
	})
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

func (s *Service) ListExercises(ctx context.Context, buildingID uuid.UUID) ([]domain.Exercise, error) {
	db := s.DB.WithContext(ctx)
	if err := apportionment.EnsureBuilding(db, buildingID); err != nil {
		return nil, err
	}
	out := []domain.Exercise{}
	if err := db.Where("immeuble_id = ?", buildingID).Order("date_debut DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func findBuilding(tx *gorm.DB, id uuid.UUID) (*domain.Building, error) {
	var b domain.Building
	if err := tx.Where("id = ?", id).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound("Building not found")
		}
		return nil, err
	}
	return &b, nil
}

func findOwner(tx *gorm.DB, id uuid.UUID) (*domain.Owner, error) {
	var o domain.Owner
	if err := tx.Where("id = ?", id).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound("Proprietaire not found")
		}
		return nil, err
	}
	return &o, nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Building is a co-owned property (immeuble).
type Building struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Nom        string    `gorm:"column:nom;not null" json:"nom"`
	Adresse    string    `gorm:"column:adresse;not null" json:"adresse"`
	CodePostal string    `gorm:"column:code_postal;type:varchar(10)" json:"code_postal"`
	Ville      string    `gorm:"column:ville" json:"ville"`
	CreatedAt  time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Building) TableName() string {
	return "Immeubles"
}

func (b *Building) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Owner (proprietaire) holds a millieme share of one building.
type Owner struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BuildingID uuid.UUID `gorm:"column:immeuble_id;type:uuid;not null;index" json:"immeuble_id"`
	Prenom     string    `gorm:"column:prenom;not null" json:"prenom"`
	Nom        string    `gorm:"column:nom;not null" json:"nom"`
	Email      *string   `gorm:"column:email" json:"email"`
	Milliemes  int       `gorm:"column:milliemes;not null;default:0" json:"milliemes"`
	CreatedAt  time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Owner) TableName() string {
	return "Proprietaires"
}

func (o *Owner) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Exercise is an accounting period of a building.
type Exercise struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BuildingID uuid.UUID `gorm:"column:immeuble_id;type:uuid;not null;index" json:"immeuble_id"`
	Libelle    string    `gorm:"column:libelle;not null" json:"libelle"`
	DateDebut  time.Time `gorm:"column:date_debut;type:date;not null" json:"date_debut"`
	DateFin    time.Time `gorm:"column:date_fin;type:date;not null" json:"date_fin"`
	Cloture    bool      `gorm:"column:cloture;not null;default:false" json:"cloture"`
	CreatedAt  time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Exercise) TableName() string {
	return "Exercices"
}

func (e *Exercise) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ChargeType string

const (
	FondsRoulement      ChargeType = "fonds_roulement"
	FondsReserve        ChargeType = "fonds_reserve"
	ChargesGenerales    ChargeType = "charges_generales"
	ChargesSpeciales    ChargeType = "charges_speciales"
	FraisAdministration ChargeType = "frais_administration"
)

// ChargeTypes lists every recognized type in display order.
var ChargeTypes = []ChargeType{FondsRoulement, FondsReserve, ChargesGenerales, ChargesSpeciales, FraisAdministration}

func (t ChargeType) Valid() bool {
	for _, v := range ChargeTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Frequency string

const (
	Mensuel     Frequency = "mensuel"
	Trimestriel Frequency = "trimestriel"
	Semestriel  Frequency = "semestriel"
	Annuel      Frequency = "annuel"
)

var frequencyDivisors = map[Frequency]int{
	Mensuel:     12,
	Trimestriel: 4,
	Semestriel:  2,
	Annuel:      1,
}

func (f Frequency) Valid() bool {
	_, ok := frequencyDivisors[f]
	return ok
}

// Divisor is the number of calls per year.
func (f Frequency) Divisor() int {
	return frequencyDivisors[f]
}

// Months is the nominal length of one period.
func (f Frequency) Months() int {
	d := f.Divisor()
	if d == 0 {
		return 0
	}
	return 12 / d
}

type RepartitionKey string

const (
	KeyMilliemes  RepartitionKey = "milliemes"
	KeyEgalitaire RepartitionKey = "egalitaire"
	KeyCustom     RepartitionKey = "custom"
)

func (k RepartitionKey) Valid() bool {
	switch k {
	case KeyMilliemes, KeyEgalitaire, KeyCustom:
		return true
	}
	return false
}

// ChargeDefinition is a recurring charge (charge recurrente) of a building.
type ChargeDefinition struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BuildingID     uuid.UUID       `gorm:"column:immeuble_id;type:uuid;not null;index" json:"immeuble_id"`
	ExerciseID     *uuid.UUID      `gorm:"column:exercice_id;type:uuid;index" json:"exercice_id"`
	Type           ChargeType      `gorm:"column:type;type:varchar(30);not null" json:"type"`
	Libelle        string          `gorm:"column:libelle;not null" json:"libelle"`
	Description    string          `gorm:"column:description;type:text" json:"description"`
	MontantAnnuel  decimal.Decimal `gorm:"column:montant_annuel;type:decimal(12,2);not null;default:0" json:"montant_annuel"`
	Frequence      Frequency       `gorm:"column:frequence;type:varchar(20);not null" json:"frequence"`
	CleRepartition RepartitionKey  `gorm:"column:cle_repartition;type:varchar(20);not null" json:"cle_repartition"`
	Actif          bool            `gorm:"column:actif;not null" json:"actif"`
	DateDebut      *time.Time      `gorm:"column:date_debut;type:date" json:"date_debut"`
	DateFin        *time.Time      `gorm:"column:date_fin;type:date" json:"date_fin"`
	CreatedAt      time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt      time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (ChargeDefinition) TableName() string {
	return "Charges"
}

func (c *ChargeDefinition) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Validate checks the invariants of a charge definition.
func (c *ChargeDefinition) Validate() error {
	if c.Libelle == "" {
		return Invalid("libelle is required")
	}
	if !c.Type.Valid() {
		return Invalid("Invalid charge type: %q", c.Type)
	}
	if !c.Frequence.Valid() {
		return Invalid("Invalid frequence: %q", c.Frequence)
	}
	if !c.CleRepartition.Valid() {
		return Invalid("Invalid cle_repartition: %q", c.CleRepartition)
	}
	if c.MontantAnnuel.IsNegative() {
		return Invalid("montant_annuel must not be negative")
	}
	if c.DateDebut != nil && c.DateFin != nil && c.DateFin.Before(*c.DateDebut) {
		return Invalid("date_fin must not be before date_debut")
	}
	return nil
}

// ActiveOn reports whether the charge applies on the given day.
func (c *ChargeDefinition) ActiveOn(day time.Time) bool {
	if !c.Actif {
		return false
	}
	day = DateOnly(day)
	if c.DateDebut != nil && day.Before(DateOnly(*c.DateDebut)) {
		return false
	}
	if c.DateFin != nil && day.After(DateOnly(*c.DateFin)) {
		return false
	}
	return true
}

// Exclusion marks an owner as not liable for a charges_speciales charge.
type Exclusion struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ChargeID  uuid.UUID `gorm:"column:charge_id;type:uuid;not null;uniqueIndex:idx_exclusion_charge_owner" json:"charge_id"`
	OwnerID   uuid.UUID `gorm:"column:proprietaire_id;type:uuid;not null;uniqueIndex:idx_exclusion_charge_owner" json:"proprietaire_id"`
	Motif     *string   `gorm:"column:motif" json:"motif"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`
}

func (Exclusion) TableName() string {
	return "ChargeExclusions"
}

func (e *Exclusion) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// CustomQuota is the quote-part of one owner under a custom repartition.
type CustomQuota struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ChargeID  uuid.UUID       `gorm:"column:charge_id;type:uuid;not null;uniqueIndex:idx_quota_charge_owner" json:"charge_id"`
	OwnerID   uuid.UUID       `gorm:"column:proprietaire_id;type:uuid;not null;uniqueIndex:idx_quota_charge_owner" json:"proprietaire_id"`
	QuotePart decimal.Decimal `gorm:"column:quote_part;type:decimal(12,4);not null" json:"quote_part"`
	CreatedAt time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (CustomQuota) TableName() string {
	return "ChargeQuotesParts"
}

func (q *CustomQuota) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateKey formats a calendar day as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentState is the stored payment progress of a billing call.
type PaymentState string

const (
	EnAttente         PaymentState = "en_attente"
	PartiellementPaye PaymentState = "partiellement_paye"
	Paye              PaymentState = "paye"
)

// EnRetard is only ever a read-time projection, never stored.
const EnRetard = "en_retard"

// BillingCall (appel de charges) is what one owner owes for one charge over one period.
type BillingCall struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ChargeID          uuid.UUID       `gorm:"column:charge_id;type:uuid;not null;uniqueIndex:idx_appel_unique" json:"charge_id"`
	OwnerID           uuid.UUID       `gorm:"column:proprietaire_id;type:uuid;not null;uniqueIndex:idx_appel_unique;index" json:"proprietaire_id"`
	BuildingID        uuid.UUID       `gorm:"column:immeuble_id;type:uuid;not null;index" json:"immeuble_id"`
	PeriodeDebut      time.Time       `gorm:"column:periode_debut;type:date;not null;uniqueIndex:idx_appel_unique" json:"periode_debut"`
	PeriodeFin        time.Time       `gorm:"column:periode_fin;type:date;not null;uniqueIndex:idx_appel_unique" json:"periode_fin"`
	MontantAppele     decimal.Decimal `gorm:"column:montant_appele;type:decimal(12,2);not null" json:"montant_appele"`
	MontantPaye       decimal.Decimal `gorm:"column:montant_paye;type:decimal(12,2);not null;default:0" json:"montant_paye"`
	PaymentState      PaymentState    `gorm:"column:statut;type:varchar(30);not null;default:'en_attente'" json:"payment_state"`
	DateEcheance      time.Time       `gorm:"column:date_echeance;type:date;not null" json:"date_echeance"`
	DatePaiement      *time.Time      `gorm:"column:date_paiement" json:"date_paiement"`
	ReferencePaiement *string         `gorm:"column:reference_paiement" json:"reference_paiement"`
	CreatedAt         time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt         time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (BillingCall) TableName() string {
	return "AppelsDeCharges"
}

func (b *BillingCall) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// StateFor derives the payment state from the paid and called amounts.
func StateFor(paid, called decimal.Decimal) PaymentState {
	switch {
	case paid.IsZero() || paid.IsNegative():
		return EnAttente
	case paid.LessThan(called):
		return PartiellementPaye
	default:
		return Paye
	}
}

// Overdue is true when the call is not fully paid and today is past its due date.
func (b *BillingCall) Overdue(now time.Time) bool {
	if b.PaymentState == Paye {
		return false
	}
	return DateOnly(now).After(DateOnly(b.DateEcheance))
}

// Remaining is the amount still owed.
func (b *BillingCall) Remaining() decimal.Decimal {
	return b.MontantAppele.Sub(b.MontantPaye)
}

// BillingCallView is a billing call with its read-time overdue flag and legacy statut.
type BillingCallView struct {
	BillingCall
	IsOverdue bool   `json:"is_overdue"`
	Statut    string `json:"statut"`
}

// View projects the call at the given instant.
func (b BillingCall) View(now time.Time) BillingCallView {
	overdue := b.Overdue(now)
	statut := string(b.PaymentState)
	if overdue {
		statut = EnRetard
	}
	return BillingCallView{BillingCall: b, IsOverdue: overdue, Statut: statut}
}

// Payment is one recorded payment against a billing call. Rows are never updated.
type Payment struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BillingCallID uuid.UUID       `gorm:"column:appel_id;type:uuid;not null;index" json:"appel_id"`
	Montant       decimal.Decimal `gorm:"column:montant;type:decimal(12,2);not null" json:"montant"`
	Reference     *string         `gorm:"column:reference" json:"reference"`
	PaidAt        time.Time       `gorm:"column:paid_at;not null" json:"paid_at"`
	RecordedBy    *string         `gorm:"column:recorded_by" json:"recorded_by"`
	Metadata      datatypes.JSON  `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt     time.Time       `gorm:"column:createdAt" json:"createdAt"`
}

func (Payment) TableName() string {
	return "Paiements"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

package billing

import (
	"context"
	"errors"
	"time"

	"copro-backend/internal/application/apportionment"
	"copro-backend/internal/application/emails"
	"copro-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const noticeTimeout = 20 * time.Second

// Service issues billing calls and records payments against them.
type Service struct {
	DB *gorm.DB
	// DueDays is added to a period start to get the call's due date.
	DueDays int
	// Notifier is optional; notices are sent after commit and failures are only logged.
	Notifier emails.Sender
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// GenerateResult lists every call of the requested window, whether created now or before.
type GenerateResult struct {
	Calls   []domain.BillingCallView `json:"calls"`
	Created int                      `json:"created"`
	Skipped int                      `json:"skipped"`
}

// PaymentInput is one payment recorded by the syndic.
type PaymentInput struct {
	CallID     uuid.UUID
	Amount     decimal.Decimal
	Reference  *string
	PaidAt     *time.Time
	RecordedBy *string
	Metadata   datatypes.JSON
}

// ListFilter narrows ListCalls. Statut matches the read-time projection, so
// "en_retard" selects overdue calls.
type ListFilter struct {
	BuildingID uuid.UUID
	OwnerID    *uuid.UUID
	ChargeID   *uuid.UUID
	Statut     string
}

// GenerateBillingCalls creates the calls of one charge over [start, end].
// Calls that already exist for an (owner, period) pair are left untouched, so
// running it twice over the same window creates nothing the second time.
func (s *Service) GenerateBillingCalls(ctx context.Context, chargeID uuid.UUID, start, end time.Time) (*GenerateResult, error) {
	start, end = domain.DateOnly(start), domain.DateOnly(end)
	if end.Before(start) {
		return nil, domain.Invalid("periodEnd must not be before periodStart")
	}

	var (
		res      GenerateResult
		charge   domain.ChargeDefinition
		building domain.Building
		owners   []domain.Owner
		created  []domain.BillingCall
	)
	now := s.now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", chargeID).First(&charge).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFound("Charge not found")
			}
			return err
		}
		if !charge.Actif {
			return domain.Invalid("Charge is inactive")
		}
		if err := tx.Where("id = ?", charge.BuildingID).First(&building).Error; err != nil {
			return err
		}
		if err := tx.Where("immeuble_id = ?", charge.BuildingID).Order("nom ASC, prenom ASC, id ASC").Find(&owners).Error; err != nil {
			return err
		}
		exclusions, quotas, err := apportionment.LoadRules(tx, []uuid.UUID{charge.ID})
		if err != nil {
			return err
		}
		excluded := apportionment.ExclusionsByCharge(exclusions)[charge.ID]
		shares := apportionment.QuotasByCharge(quotas)[charge.ID]

		existing, err := callsByKey(tx, charge.ID)
		if err != nil {
			return err
		}

		var keys []string
		var candidates []domain.BillingCall
		for _, p := range SplitPeriods(charge.Frequence, start, end, charge.DateDebut, charge.DateFin) {
			alloc := apportionment.Split(p.Amount(charge.MontantAnnuel, charge.Frequence), &charge, owners, excluded, shares)
			for _, o := range owners {
				amount := alloc.Shares[o.ID]
				if !amount.IsPositive() {
					continue
				}
				key := callKey(o.ID, p.Start, p.End)
				keys = append(keys, key)
				if _, ok := existing[key]; ok {
					continue
				}
				candidates = append(candidates, domain.BillingCall{
					ID:            uuid.New(),
					ChargeID:      charge.ID,
					OwnerID:       o.ID,
					BuildingID:    charge.BuildingID,
					PeriodeDebut:  p.Start,
					PeriodeFin:    p.End,
					MontantAppele: amount,
					MontantPaye:   decimal.Zero,
					PaymentState:  domain.EnAttente,
					DateEcheance:  p.Start.AddDate(0, 0, s.DueDays),
				})
			}
		}

		if len(candidates) > 0 {
			// A concurrent generation may have inserted some of these rows since
			// the read above; the unique index turns those into no-ops.
			r := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidates)
			if r.Error != nil {
				return r.Error
			}
			res.Created = int(r.RowsAffected)
			if existing, err = callsByKey(tx, charge.ID); err != nil {
				return err
			}
			for _, c := range candidates {
				if stored, ok := existing[callKey(c.OwnerID, c.PeriodeDebut, c.PeriodeFin)]; ok && stored.ID == c.ID {
					created = append(created, stored)
				}
			}
		}

		res.Calls = make([]domain.BillingCallView, 0, len(keys))
		for _, k := range keys {
			res.Calls = append(res.Calls, existing[k].View(now))
		}
		res.Skipped = len(keys) - res.Created
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("charge_id", charge.ID.String()).
		Str("period_start", domain.DateKey(start)).
		Str("period_end", domain.DateKey(end)).
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Msg("billing calls generated")

	s.notify(ctx, building, charge, owners, created)
	return &res, nil
}

// RecordPayment adds amount to the paid total of a call. Payments that would
// take the paid total above the called amount are rejected.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (*domain.BillingCallView, *domain.Payment, error) {
	if !in.Amount.IsPositive() {
		return nil, nil, domain.Invalid("montant must be greater than zero")
	}
	if !in.Amount.Equal(in.Amount.Round(2)) {
		return nil, nil, domain.Invalid("montant must have at most 2 decimal places")
	}
	now := s.now()
	paidAt := now.UTC()
	if in.PaidAt != nil {
		paidAt = in.PaidAt.UTC()
	}

	var call domain.BillingCall
	var payment domain.Payment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", in.CallID).First(&call).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFound("Billing call not found")
			}
			return err
		}
		if call.PaymentState == domain.Paye {
			return domain.Overpayment("Billing call is already paid")
		}
		if in.Amount.GreaterThan(call.Remaining()) {
			return domain.Overpayment("Payment of %s exceeds the remaining %s", in.Amount.StringFixed(2), call.Remaining().StringFixed(2))
		}

		call.MontantPaye = call.MontantPaye.Add(in.Amount)
		call.PaymentState = domain.StateFor(call.MontantPaye, call.MontantAppele)
		call.DatePaiement = &paidAt
		if in.Reference != nil {
			call.ReferencePaiement = in.Reference
		}
		err = tx.Model(&call).Updates(map[string]interface{}{
			"montant_paye":       call.MontantPaye,
			"statut":             call.PaymentState,
			"date_paiement":      call.DatePaiement,
			"reference_paiement": call.ReferencePaiement,
		}).Error
		if err != nil {
			return err
		}

		payment = domain.Payment{
			BillingCallID: call.ID,
			Montant:       in.Amount,
			Reference:     in.Reference,
			PaidAt:        paidAt,
			RecordedBy:    in.RecordedBy,
			Metadata:      in.Metadata,
		}
		return tx.Create(&payment).Error
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("appel_id", call.ID.String()).
		Str("montant", in.Amount.StringFixed(2)).
		Str("statut", string(call.PaymentState)).
		Msg("payment recorded")

	view := call.View(now)
	return &view, &payment, nil
}

// GetCall returns one call with its read-time status.
func (s *Service) GetCall(ctx context.Context, id uuid.UUID) (*domain.BillingCallView, error) {
	var call domain.BillingCall
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&call).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound("Billing call not found")
		}
		return nil, err
	}
	view := call.View(s.now())
	return &view, nil
}

// ListCalls returns the calls of a building ordered by period then owner.
func (s *Service) ListCalls(ctx context.Context, f ListFilter) ([]domain.BillingCallView, error) {
	switch f.Statut {
	case "", string(domain.EnAttente), string(domain.PartiellementPaye), string(domain.Paye), domain.EnRetard:
	default:
		return nil, domain.Invalid("Invalid statut: %q", f.Statut)
	}
	db := s.DB.WithContext(ctx)
	if err := apportionment.EnsureBuilding(db, f.BuildingID); err != nil {
		return nil, err
	}
	q := db.Where("immeuble_id = ?", f.BuildingID)
	if f.OwnerID != nil {
		q = q.Where("proprietaire_id = ?", *f.OwnerID)
	}
	if f.ChargeID != nil {
		q = q.Where("charge_id = ?", *f.ChargeID)
	}
	var calls []domain.BillingCall
	if err := q.Order("periode_debut ASC, proprietaire_id ASC, charge_id ASC").Find(&calls).Error; err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]domain.BillingCallView, 0, len(calls))
	for _, c := range calls {
		v := c.View(now)
		if f.Statut != "" && v.Statut != f.Statut {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// ListPayments returns the payment history of one call, oldest first.
func (s *Service) ListPayments(ctx context.Context, callID uuid.UUID) ([]domain.Payment, error) {
	db := s.DB.WithContext(ctx)
	var call domain.BillingCall
	if err := db.Select("id").Where("id = ?", callID).First(&call).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound("Billing call not found")
		}
		return nil, err
	}
	payments := []domain.Payment{}
	if err := db.Where("appel_id = ?", callID).Order(`paid_at ASC, "createdAt" ASC`).Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Service) notify(ctx context.Context, b domain.Building, c domain.ChargeDefinition, owners []domain.Owner, created []domain.BillingCall) {
	if s.Notifier == nil || len(created) == 0 {
		return
	}
	lines := make(map[uuid.UUID][]emails.NoticeLine)
	for _, call := range created {
		lines[call.OwnerID] = append(lines[call.OwnerID], emails.NoticeLine{
			PeriodeDebut: call.PeriodeDebut,
			PeriodeFin:   call.PeriodeFin,
			DateEcheance: call.DateEcheance,
			Montant:      call.MontantAppele,
		})
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), noticeTimeout)
	defer cancel()
	for _, o := range owners {
		if o.Email == nil || *o.Email == "" || len(lines[o.ID]) == 0 {
			continue
		}
		notice := emails.CallNotice{
			ToEmail:       *o.Email,
			OwnerName:     o.Prenom + " " + o.Nom,
			BuildingName:  b.Nom,
			ChargeLibelle: c.Libelle,
			Lines:         lines[o.ID],
		}
		if err := s.Notifier.SendCallNotice(ctx, notice); err != nil {
			log.Warn().Err(err).Str("proprietaire_id", o.ID.String()).Msg("billing call notice not sent")
		}
	}
}

func callsByKey(tx *gorm.DB, chargeID uuid.UUID) (map[string]domain.BillingCall, error) {
	var calls []domain.BillingCall
	if err := tx.Where("charge_id = ?", chargeID).Find(&calls).Error; err != nil {
		return nil, err
	}
	out := make(map[string]domain.BillingCall, len(calls))
	for _, c := range calls {
		out[callKey(c.OwnerID, c.PeriodeDebut, c.PeriodeFin)] = c
	}
	return out, nil
}

func callKey(owner uuid.UUID, start, end time.Time) string {
	return owner.String() + "|" + domain.DateKey(domain.DateOnly(start)) + "|" + domain.DateKey(domain.DateOnly(end))
}

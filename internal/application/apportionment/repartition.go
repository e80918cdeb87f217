package apportionment

import (
	"sort"
	"time"

	"copro-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// currencyPlaces is the rounding scale of every amount (cents).
const currencyPlaces = 2

var monthsPerYear = decimal.NewFromInt(12)

// Input is the building state one computation runs against.
type Input struct {
	Charges    []domain.ChargeDefinition
	Owners     []domain.Owner
	Exclusions []domain.Exclusion
	Quotas     []domain.CustomQuota
}

// Allocation is the split of one amount across owners.
type Allocation struct {
	Shares      map[uuid.UUID]decimal.Decimal
	Excluded    map[uuid.UUID]bool
	NonReparti  decimal.Decimal
	Beneficiary *uuid.UUID // owner that absorbed the rounding remainder
}

// Result is the per-owner repartition of a building's active charges.
type Result struct {
	TotalMilliemes int             `json:"totalMilliemes"`
	Repartition    []OwnerShare    `json:"repartition"`
	Charges        []ChargeSummary `json:"charges"`
}

type OwnerShare struct {
	ProprietaireID uuid.UUID       `json:"proprietaireId"`
	Prenom         string          `json:"prenom"`
	Nom            string          `json:"nom"`
	Milliemes      int             `json:"milliemes"`
	TotalAnnuel    decimal.Decimal `json:"totalAnnuel"`
	TotalMensuel   decimal.Decimal `json:"totalMensuel"`
	Details        []ChargeShare   `json:"details"`
}

type ChargeShare struct {
	ChargeID uuid.UUID         `json:"chargeId"`
	Libelle  string            `json:"libelle"`
	Type     domain.ChargeType `json:"type"`
	Montant  decimal.Decimal   `json:"montant"`
	Exclu    bool              `json:"exclu"`
}

type ChargeSummary struct {
	ChargeID       uuid.UUID             `json:"chargeId"`
	Libelle        string                `json:"libelle"`
	Type           domain.ChargeType     `json:"type"`
	CleRepartition domain.RepartitionKey `json:"cleRepartition"`
	Frequence      domain.Frequency      `json:"frequence"`
	MontantAnnuel  decimal.Decimal       `json:"montantAnnuel"`
	Reparti        decimal.Decimal       `json:"reparti"`
	NonReparti     decimal.Decimal       `json:"nonReparti"`
}

// TypeTotals maps each charge type, plus "total", to the nominal annual amount.
type TypeTotals map[string]decimal.Decimal

// Compute apportions every charge active on asOf across the owners.
func Compute(in Input, asOf time.Time) *Result {
	res := &Result{
		Repartition: make([]OwnerShare, 0, len(in.Owners)),
		Charges:     []ChargeSummary{},
	}
	index := make(map[uuid.UUID]int, len(in.Owners))
	for i, o := range in.Owners {
		res.TotalMilliemes += o.Milliemes
		index[o.ID] = i
		res.Repartition = append(res.Repartition, OwnerShare{
			ProprietaireID: o.ID,
			Prenom:         o.Prenom,
			Nom:            o.Nom,
			Milliemes:      o.Milliemes,
			TotalAnnuel:    decimal.Zero,
			TotalMensuel:   decimal.Zero,
			Details:        []ChargeShare{},
		})
	}

	exclusions := ExclusionsByCharge(in.Exclusions)
	quotas := QuotasByCharge(in.Quotas)

	for i := range in.Charges {
		charge := &in.Charges[i]
		if !charge.ActiveOn(asOf) {
			continue
		}
		alloc := Split(charge.MontantAnnuel, charge, in.Owners, exclusions[charge.ID], quotas[charge.ID])
		res.Charges = append(res.Charges, ChargeSummary{
			ChargeID:       charge.ID,
			Libelle:        charge.Libelle,
			Type:           charge.Type,
			CleRepartition: charge.CleRepartition,
			Frequence:      charge.Frequence,
			MontantAnnuel:  charge.MontantAnnuel,
			Reparti:        charge.MontantAnnuel.Sub(alloc.NonReparti),
			NonReparti:     alloc.NonReparti,
		})
		for _, o := range in.Owners {
			share := alloc.Shares[o.ID]
			row := &res.Repartition[index[o.ID]]
			row.TotalAnnuel = row.TotalAnnuel.Add(share)
			row.Details = append(row.Details, ChargeShare{
				ChargeID: charge.ID,
				Libelle:  charge.Libelle,
				Type:     charge.Type,
				Montant:  share,
				Exclu:    alloc.Excluded[o.ID],
			})
		}
	}

	for i := range res.Repartition {
		res.Repartition[i].TotalMensuel = res.Repartition[i].TotalAnnuel.Div(monthsPerYear).Round(currencyPlaces)
	}
	return res
}

// Totals sums the annual amount of active charges per type, ignoring exclusions.
func Totals(charges []domain.ChargeDefinition, asOf time.Time) TypeTotals {
	totals := TypeTotals{"total": decimal.Zero}
	for _, t := range domain.ChargeTypes {
		totals[string(t)] = decimal.Zero
	}
	for i := range charges {
		c := &charges[i]
		if !c.ActiveOn(asOf) {
			continue
		}
		totals[string(c.Type)] = totals[string(c.Type)].Add(c.MontantAnnuel)
		totals["total"] = totals["total"].Add(c.MontantAnnuel)
	}
	return totals
}

// Split divides amount across owners following the charge's repartition key.
// Shares are rounded down to the cent and the remainder, never negative, goes
// to the owner with the largest weight (lowest identifier on ties), so the
// shares sum to amount whenever at least one owner carries a positive weight. Otherwise the whole
// amount is reported as NonReparti.
func Split(amount decimal.Decimal, charge *domain.ChargeDefinition, owners []domain.Owner, excluded map[uuid.UUID]bool, quotas map[uuid.UUID]decimal.Decimal) Allocation {
	alloc := Allocation{
		Shares:     make(map[uuid.UUID]decimal.Decimal, len(owners)),
		Excluded:   make(map[uuid.UUID]bool),
		NonReparti: decimal.Zero,
	}
	amount = amount.Round(currencyPlaces)

	weights := make(map[uuid.UUID]decimal.Decimal, len(owners))
	total := decimal.Zero
	for _, o := range owners {
		alloc.Shares[o.ID] = decimal.Zero
		// Exclusions only bind special charges.
		if charge.Type == domain.ChargesSpeciales && excluded[o.ID] {
			alloc.Excluded[o.ID] = true
			continue
		}
		var w decimal.Decimal
		switch charge.CleRepartition {
		case domain.KeyMilliemes:
			w = decimal.NewFromInt(int64(o.Milliemes))
		case domain.KeyEgalitaire:
			w = decimal.NewFromInt(1)
		case domain.KeyCustom:
			w = quotas[o.ID]
		}
		if !w.IsPositive() {
			continue
		}
		weights[o.ID] = w
		total = total.Add(w)
	}

	if !total.IsPositive() {
		alloc.NonReparti = amount
		return alloc
	}

	ids := make([]uuid.UUID, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		wi, wj := weights[ids[i]], weights[ids[j]]
		if !wi.Equal(wj) {
			return wi.GreaterThan(wj)
		}
		return ids[i].String() < ids[j].String()
	})

	allocated := decimal.Zero
	for _, id := range ids {
		share, _ := amount.Mul(weights[id]).QuoRem(total, currencyPlaces)
		alloc.Shares[id] = share
		allocated = allocated.Add(share)
	}
	if rem := amount.Sub(allocated); !rem.IsZero() {
		top := ids[0]
		alloc.Shares[top] = alloc.Shares[top].Add(rem)
		alloc.Beneficiary = &top
	}
	return alloc
}

// ExclusionsByCharge indexes exclusions as charge -> owner set.
func ExclusionsByCharge(rows []domain.Exclusion) map[uuid.UUID]map[uuid.UUID]bool {
	out := make(map[uuid.UUID]map[uuid.UUID]bool)
	for _, e := range rows {
		if out[e.ChargeID] == nil {
			out[e.ChargeID] = make(map[uuid.UUID]bool)
		}
		out[e.ChargeID][e.OwnerID] = true
	}
	return out
}

// QuotasByCharge indexes quotas as charge -> owner -> quote-part.
func QuotasByCharge(rows []domain.CustomQuota) map[uuid.UUID]map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]map[uuid.UUID]decimal.Decimal)
	for _, q := range rows {
		if out[q.ChargeID] == nil {
			out[q.ChargeID] = make(map[uuid.UUID]decimal.Decimal)
		}
		out[q.ChargeID][q.OwnerID] = q.QuotePart
	}
	return out
}

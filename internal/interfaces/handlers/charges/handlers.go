package charges

import (
	chargesvc "copro-backend/internal/application/charges"
	"copro-backend/internal/domain"
	"copro-backend/internal/pkg/response"
	"copro-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *chargesvc.Service
}

// ChargeRequest is the body of create and update; update replaces every field.
type ChargeRequest struct {
	ExerciceID     *string         `json:"exercice_id"`
	Type           string          `json:"type"`
	Libelle        string          `json:"libelle"`
	Description    string          `json:"description"`
	MontantAnnuel  decimal.Decimal `json:"montant_annuel"`
	Frequence      string          `json:"frequence"`
	CleRepartition string          `json:"cle_repartition"`
	Actif          *bool           `json:"actif"`
	DateDebut      *string         `json:"date_debut"`
	DateFin        *string         `json:"date_fin"`
}

func (r ChargeRequest) input() (chargesvc.ChargeInput, error) {
	in := chargesvc.ChargeInput{
		Type:           domain.ChargeType(r.Type),
		Libelle:        r.Libelle,
		Description:    r.Description,
		MontantAnnuel:  r.MontantAnnuel,
		Frequence:      domain.Frequency(r.Frequence),
		CleRepartition: domain.RepartitionKey(r.CleRepartition),
		Actif:          r.Actif,
	}
	var err error
	if r.ExerciceID != nil {
		if in.ExerciseID, err = validation.ParseOptionalUUID("exercice_id", *r.ExerciceID); err != nil {
			return in, err
		}
	}
	if in.DateDebut, err = validation.ParseOptionalDate("date_debut", r.DateDebut); err != nil {
		return in, err
	}
	if in.DateFin, err = validation.ParseOptionalDate("date_fin", r.DateFin); err != nil {
		return in, err
	}
	return in, nil
}

type ExclusionRequest struct {
	ProprietaireID string  `json:"proprietaire_id"`
	Motif          *string `json:"motif"`
}

type QuotaRequest struct {
	ProprietaireID string          `json:"proprietaire_id"`
	QuotePart      decimal.Decimal `json:"quote_part"`
}

type QuotasRequest struct {
	QuotesParts []QuotaRequest `json:"quotes_parts"`
}

// POST /api/v1/immeubles/:id/charges
func (h *Handlers) CreateCharge(c *fiber.Ctx) error {
	buildingID, err := validation.ParseUUID("immeuble id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	var req ChargeRequest
	if err := validation.DecodeStrict(c.Body(), &req); err != nil {
		return response.FromError(c, err)
	}
	in, err := req.input()
	if err != nil {
		return response.FromError(c, err)
	}
	charge, err := h.Service.CreateCharge(c.UserContext(), buildingID, in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Charge created successfully", charge, nil)
}

// GET /api/v1/immeubles/:id/charges
func (h *Handlers) ListCharges(c *fiber.Ctx) error {
	buildingID, err := validation.ParseUUID("immeuble id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	list, err := h.Service.ListCharges(c.UserContext(), buildingID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Charges fetched successfully", list, fiber.Map{"count": len(list)})
}

// GET /api/v1/charges/:id
func (h *Handlers) GetCharge(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("charge id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	charge, err := h.Service.GetCharge(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Charge fetched successfully", charge, nil)
}

// PUT /api/v1/charges/:id
func (h *Handlers) UpdateCharge(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("charge id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	var req ChargeRequest
	if err := validation.DecodeStrict(c.Body(), &req); err != nil {
		return response.FromError(c, err)
	}
	in, err := req.input()
	if err != nil {
		return response.FromError(c, err)
	}
	charge, err := h.Service.UpdateCharge(c.UserContext(), id, in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Charge updated successfully", charge, nil)
}

// DELETE /api/v1/charges/:id
func (h *Handlers) DeleteCharge(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("charge id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.DeleteCharge(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Charge deleted successfully", nil, nil)
}

// GET /api/v1/charges/:id/exclusions
func (h *Handlers) ListExclusions(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("charge id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	list, err := h.Service.ListExclusions(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Exclusions fetched successfully", list, nil)
}

// POST /api/v1/charges/:id/exclusions
func (h *Handlers) AddExclusion(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("charge id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	var req ExclusionRequest
	if err := validation.DecodeStrict(c.Body(), &req); err != nil {
		return response.FromError(c, err)
	}
	ownerID, err := validation.ParseUUID("proprietaire_id", req.ProprietaireID)
	if err != nil {
		return response.FromError(c, err)
	}
	excl, err := h.Service.AddExclusion(c.UserContext(), id, ownerID, req.Motif)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Exclusion added successfully", excl, nil)
}

// DELETE /api/v1/charges/:id/exclusions/:proprietaireId
func (h *Handlers) RemoveExclusion(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("charge id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	ownerID, err := validation.ParseUUID("proprietaire id", c.Params("proprietaireId"))
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.RemoveExclusion(c.UserContext(), id, ownerID); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Exclusion removed successfully", nil, nil)
}

// GET /api/v1/charges/:id/quotes-parts
func (h *Handlers) ListQuotas(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("charge id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	list, err := h.Service.ListQuotas(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Quotes-parts fetched successfully", list, nil)
}

// PUT /api/v1/charges/:id/quotes-parts
func (h *Handlers) ReplaceQuotas(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("charge id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	var req QuotasRequest
	if err := validation.DecodeStrict(c.Body(), &req); err != nil {
		return response.FromError(c, err)
	}
	in := make([]chargesvc.QuotaInput, 0, len(req.QuotesParts))
	for _, q := range req.QuotesParts {
		ownerID, err := validation.ParseUUID("proprietaire_id", q.ProprietaireID)
		if err != nil {
			return response.FromError(c, err)
		}
		in = append(in, chargesvc.QuotaInput{OwnerID: ownerID, QuotePart: q.QuotePart})
	}
	list, err := h.Service.ReplaceQuotas(c.UserContext(), id, in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Quotes-parts replaced successfully", list, nil)
}

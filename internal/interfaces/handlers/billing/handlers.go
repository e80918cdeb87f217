package billing

import (
	"encoding/json"

	billingsvc "copro-backend/internal/application/billing"
	"copro-backend/internal/middleware"
	"copro-backend/internal/pkg/response"
	"copro-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Handlers struct {
	Service *billingsvc.Service
}

type GenerateRequest struct {
	PeriodStart string `json:"periodStart"`
	PeriodEnd   string `json:"periodEnd"`
}

type PaymentRequest struct {
	Montant      decimal.Decimal `json:"montant"`
	Reference    *string         `json:"reference"`
	DatePaiement *string         `json:"date_paiement"`
	Metadata     json.RawMessage `json:"metadata"`
}

// POST /api/v1/charges/:id/appels
func (h *Handlers) GenerateBillingCalls(c *fiber.Ctx) error {
	chargeID, err := validation.ParseUUID("charge id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	var req GenerateRequest
	if err := validation.DecodeStrict(c.Body(), &req); err != nil {
		return response.FromError(c, err)
	}
	start, err := validation.ParseDate("periodStart", req.PeriodStart)
	if err != nil {
		return response.FromError(c, err)
	}
	end, err := validation.ParseDate("periodEnd", req.PeriodEnd)
	if err != nil {
		return response.FromError(c, err)
	}
	res, err := h.Service.GenerateBillingCalls(c.UserContext(), chargeID, start, end)
	if err != nil {
		return response.FromError(c, err)
	}
	meta := fiber.Map{"created": res.Created, "skipped": res.Skipped}
	if res.Created == 0 {
		return response.Success(c, "Billing calls already generated", res.Calls, meta)
	}
	return response.SuccessCreated(c, "Billing calls generated successfully", res.Calls, meta)
}

// GET /api/v1/immeubles/:id/appels?proprietaire=&charge=&statut=
func (h *Handlers) ListCalls(c *fiber.Ctx) error {
	buildingID, err := validation.ParseUUID("immeuble id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	f := billingsvc.ListFilter{BuildingID: buildingID, Statut: c.Query("statut")}
	if f.OwnerID, err = validation.ParseOptionalUUID("proprietaire", c.Query("proprietaire")); err != nil {
		return response.FromError(c, err)
	}
	if f.ChargeID, err = validation.ParseOptionalUUID("charge", c.Query("charge")); err != nil {
		return response.FromError(c, err)
	}
	calls, err := h.Service.ListCalls(c.UserContext(), f)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Billing calls fetched successfully", calls, fiber.Map{"count": len(calls)})
}

// GET /api/v1/appels/:id
func (h *Handlers) GetCall(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("appel id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	call, err := h.Service.GetCall(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Billing call fetched successfully", call, nil)
}

// GET /api/v1/appels/:id/paiements
func (h *Handlers) ListPayments(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("appel id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	payments, err := h.Service.ListPayments(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Payments fetched successfully", payments, nil)
}

// POST /api/v1/appels/:id/paiements
func (h *Handlers) RecordPayment(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("appel id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	var req PaymentRequest
	if err := validation.DecodeStrict(c.Body(), &req); err != nil {
		return response.FromError(c, err)
	}
	in := billingsvc.PaymentInput{CallID: id, Amount: req.Montant, Reference: req.Reference}
	if in.PaidAt, err = validation.ParseOptionalDate("date_paiement", req.DatePaiement); err != nil {
		return response.FromError(c, err)
	}
	if len(req.Metadata) > 0 && string(req.Metadata) != "null" {
		in.Metadata = datatypes.JSON(req.Metadata)
	}
	if u, ok := middleware.CurrentUser(c); ok && u.Email != "" {
		email := u.Email
		in.RecordedBy = &email
	}
	call, payment, err := h.Service.RecordPayment(c.UserContext(), in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Payment recorded successfully", fiber.Map{"appel": call, "paiement": payment}, nil)
}

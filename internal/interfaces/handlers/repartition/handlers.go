package repartition

import (
	"time"

	"copro-backend/internal/application/apportionment"
	"copro-backend/internal/domain"
	"copro-backend/internal/pkg/response"
	"copro-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *apportionment.Service
	Now     func() time.Time
}

// query reads :id, ?date= (defaults to today) and ?exercice=.
func (h *Handlers) query(c *fiber.Ctx) (apportionment.Query, error) {
	var q apportionment.Query
	id, err := validation.ParseUUID("immeuble id", c.Params("id"))
	if err != nil {
		return q, err
	}
	q.BuildingID = id
	q.AsOf = domain.DateOnly(h.now())
	if s := c.Query("date"); s != "" {
		if q.AsOf, err = validation.ParseDate("date", s); err != nil {
			return q, err
		}
	}
	if q.ExerciseID, err = validation.ParseOptionalUUID("exercice", c.Query("exercice")); err != nil {
		return q, err
	}
	return q, nil
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// GET /api/v1/immeubles/:id/repartition
func (h *Handlers) ComputeRepartition(c *fiber.Ctx) error {
	q, err := h.query(c)
	if err != nil {
		return response.FromError(c, err)
	}
	res, err := h.Service.ComputeRepartition(c.UserContext(), q)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Repartition computed successfully", res, fiber.Map{"date": domain.DateKey(q.AsOf)})
}

// GET /api/v1/immeubles/:id/charges/totaux
func (h *Handlers) ChargeTotals(c *fiber.Ctx) error {
	q, err := h.query(c)
	if err != nil {
		return response.FromError(c, err)
	}
	totals, err := h.Service.ChargeTotals(c.UserContext(), q)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Charge totals computed successfully", totals, fiber.Map{"date": domain.DateKey(q.AsOf)})
}

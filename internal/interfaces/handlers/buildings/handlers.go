package buildings

import (
	buildingsvc "copro-backend/internal/application/buildings"
	"copro-backend/internal/pkg/response"
	"copro-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *buildingsvc.Service
}

type BuildingRequest struct {
	Nom        string `json:"nom"`
	Adresse    string `json:"adresse"`
	CodePostal string `json:"code_postal"`
	Ville      string `json:"ville"`
}

func (r BuildingRequest) input() buildingsvc.BuildingInput {
	return buildingsvc.BuildingInput{Nom: r.Nom, Adresse: r.Adresse, CodePostal: r.CodePostal, Ville: r.Ville}
}

type OwnerRequest struct {
	Prenom    string  `json:"prenom"`
	Nom       string  `json:"nom"`
	Email     *string `json:"email"`
	Milliemes int     `json:"milliemes"`
}

func (r OwnerRequest) input() buildingsvc.OwnerInput {
	return buildingsvc.OwnerInput{Prenom: r.Prenom, Nom: r.Nom, Email: r.Email, Milliemes: r.Milliemes}
}

type ExerciseRequest struct {
	Libelle   string `json:"libelle"`
	DateDebut string `json:"date_debut"`
	DateFin   string `json:"date_fin"`
	Cloture   bool   `json:"cloture"`
}

// POST /api/v1/immeubles
func (h *Handlers) CreateBuilding(c *fiber.Ctx) error {
	var req BuildingRequest
	if err := validation.DecodeStrict(c.Body(), &req); err != nil {
		return response.FromError(c, err)
	}
	b, err := h.Service.CreateBuilding(c.UserContext(), req.input())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Immeuble created successfully", b, nil)
}

// GET /api/v1/immeubles
func (h *Handlers) ListBuildings(c *fiber.Ctx) error {
	list, err := h.Service.ListBuildings(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Immeubles fetched successfully", list, fiber.Map{"count": len(list)})
}

// GET /api/v1/immeubles/:id
func (h *Handlers) GetBuilding(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("immeuble id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	b, err := h.Service.GetBuilding(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Immeuble fetched successfully", b, nil)
}

// PUT /api/v1/immeubles/:id
func (h *Handlers) UpdateBuilding(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("immeuble id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	var req BuildingRequest
	if err := validation.DecodeStrict(c.Body(), &req); err != nil {
		return response.FromError(c, err)
	}
	b, err := h.Service.UpdateBuilding(c.UserContext(), id, req.input())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Immeuble updated successfully", b, nil)
}

// DELETE /api/v1/immeubles/:id
func (h *Handlers) DeleteBuilding(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("immeuble id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.DeleteBuilding(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Immeuble deleted successfully", nil, nil)
}

// POST /api/v1/immeubles/:id/proprietaires
func (h *Handlers) CreateOwner(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("immeuble id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	var req OwnerRequest
	if err := validation.DecodeStrict(c.Body(), &req); err != nil {
		return response.FromError(c, err)
	}
	o, err := h.Service.CreateOwner(c.UserContext(), id, req.input())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Proprietaire created successfully", o, nil)
}

// GET /api/v1/immeubles/:id/proprietaires
func (h *Handlers) ListOwners(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("immeuble id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	owners, err := h.Service.ListOwners(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Proprietaires fetched successfully", owners, fiber.Map{"count": len(owners)})
}

// PUT /api/v1/proprietaires/:id
func (h *Handlers) UpdateOwner(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("proprietaire id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	var req OwnerRequest
	if err := validation.DecodeStrict(c.Body(), &req); err != nil {
		return response.FromError(c, err)
	}
	o, err := h.Service.UpdateOwner(c.UserContext(), id, req.input())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Proprietaire updated successfully", o, nil)
}

// DELETE /api/v1/proprietaires/:id
func (h *Handlers) DeleteOwner(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("proprietaire id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.DeleteOwner(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Proprietaire deleted successfully", nil, nil)
}

// POST /api/v1/immeubles/:id/exercices
func (h *Handlers) CreateExercise(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("immeuble id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	var req ExerciseRequest
	if err := validation.DecodeStrict(c.Body(), &req); err != nil {
		return response.FromError(c, err)
	}
	start, err := validation.ParseDate("date_debut", req.DateDebut)
	if err != nil {
		return response.FromError(c, err)
	}
	end, err := validation.ParseDate("date_fin", req.DateFin)
	if err != nil {
		return response.FromError(c, err)
	}
	ex, err := h.Service.CreateExercise(c.UserContext(), id, buildingsvc.ExerciseInput{
		Libelle:   req.Libelle,
		DateDebut: start,
		DateFin:   end,
		Cloture:   req.Cloture,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Exercice created successfully", ex, nil)
}

// GET /api/v1/immeubles/:id/exercices
func (h *Handlers) ListExercises(c *fiber.Ctx) error {
	id, err := validation.ParseUUID("immeuble id", c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	list, err := h.Service.ListExercises(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Exercices fetched successfully", list, nil)
}

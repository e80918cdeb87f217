package charges

import (
	"fmt"
	"testing"

	chargesvc "copro-backend/internal/application/charges"
	"copro-backend/internal/domain"
	"copro-backend/internal/middleware"
	"copro-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	db := testutil.NewDB(t)
	h := &Handlers{Service: &chargesvc.Service{DB: db}}
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	app.Post("/immeubles/:id/charges", h.CreateCharge)
	app.Get("/immeubles/:id/charges", h.ListCharges)
	app.Get("/charges/:id", h.GetCharge)
	app.Put("/charges/:id", h.UpdateCharge)
	app.Delete("/charges/:id", h.DeleteCharge)
	app.Get("/charges/:id/exclusions", h.ListExclusions)
	app.Post("/charges/:id/exclusions", h.AddExclusion)
	app.Delete("/charges/:id/exclusions/:proprietaireId", h.RemoveExclusion)
	app.Get("/charges/:id/quotes-parts", h.ListQuotas)
	app.Put("/charges/:id/quotes-parts", h.ReplaceQuotas)
	return app, db
}

func chargeBody(typ, key string) map[string]interface{} {
	return map[string]interface{}{
		"type":            typ,
		"libelle":         "Ascenseur",
		"montant_annuel":  "1200.00",
		"frequence":       "trimestriel",
		"cle_repartition": key,
		"date_debut":      "2025-01-01",
	}
}

func TestChargeLifecycle(t *testing.T) {
	app, db := setupApp(t)
	b := testutil.Building(t, db, "Les Tilleuls")

	status, env := testutil.Call(t, app, "POST", fmt.Sprintf("/immeubles/%s/charges", b.ID), chargeBody("charges_generales", "milliemes"))
	require.Equal(t, fiber.StatusCreated, status, env.Error.Message)
	var charge domain.ChargeDefinition
	testutil.DataAs(t, env, &charge)
	assert.True(t, charge.Actif)
	assert.True(t, decimal.RequireFromString("1200").Equal(charge.MontantAnnuel))
	require.NotNil(t, charge.DateDebut)
	assert.Equal(t, "2025-01-01", domain.DateKey(*charge.DateDebut))

	update := chargeBody("charges_generales", "egalitaire")
	update["actif"] = false
	update["montant_annuel"] = 900
	status, env = testutil.Call(t, app, "PUT", "/charges/"+charge.ID.String(), update)
	require.Equal(t, fiber.StatusOK, status, env.Error.Message)
	testutil.DataAs(t, env, &charge)
	assert.False(t, charge.Actif)
	assert.Equal(t, domain.KeyEgalitaire, charge.CleRepartition)

	status, env = testutil.Call(t, app, "GET", fmt.Sprintf("/immeubles/%s/charges", b.ID), nil)
	require.Equal(t, fiber.StatusOK, status)
	var list []domain.ChargeDefinition
	testutil.DataAs(t, env, &list)
	assert.Len(t, list, 1)

	status, _ = testutil.Call(t, app, "DELETE", "/charges/"+charge.ID.String(), nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = testutil.Call(t, app, "GET", "/charges/"+charge.ID.String(), nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestChargeHandlers_Validation(t *testing.T) {
	app, db := setupApp(t)
	b := testutil.Building(t, db, "Les Tilleuls")
	path := fmt.Sprintf("/immeubles/%s/charges", b.ID)

	for name, mutate := range map[string]func(map[string]interface{}){
		"bad type":      func(m map[string]interface{}) { m["type"] = "loyer" },
		"bad frequence": func(m map[string]interface{}) { m["frequence"] = "hebdomadaire" },
		"negative":      func(m map[string]interface{}) { m["montant_annuel"] = "-1" },
		"bad date":      func(m map[string]interface{}) { m["date_fin"] = "demain" },
		"unknown field": func(m map[string]interface{}) { m["tva"] = 20 },
		"bad exercice":  func(m map[string]interface{}) { m["exercice_id"] = "nope" },
	} {
		body := chargeBody("charges_generales", "milliemes")
		mutate(body)
		status, _ := testutil.Call(t, app, "POST", path, body)
		assert.Equal(t, fiber.StatusBadRequest, status, name)
	}

	status, _ := testutil.Call(t, app, "POST", "/immeubles/550e8400-e29b-41d4-a716-446655440000/charges", chargeBody("charges_generales", "milliemes"))
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestExclusionsAndQuotas(t *testing.T) {
	app, db := setupApp(t)
	b := testutil.Building(t, db, "Les Tilleuls")
	a := testutil.Owner(t, db, b, "A", 600)
	o := testutil.Owner(t, db, b, "B", 400)
	special := testutil.Charge(t, db, b, domain.ChargesSpeciales, "600", domain.Annuel, domain.KeyMilliemes)
	custom := testutil.Charge(t, db, b, domain.ChargesGenerales, "600", domain.Annuel, domain.KeyCustom)

	excl := fmt.Sprintf("/charges/%s/exclusions", special.ID)
	status, env := testutil.Call(t, app, "POST", excl, map[string]interface{}{"proprietaire_id": o.ID.String(), "motif": "rez-de-chaussée"})
	require.Equal(t, fiber.StatusCreated, status, env.Error.Message)
	status, _ = testutil.Call(t, app, "POST", excl, map[string]interface{}{"proprietaire_id": o.ID.String()})
	assert.Equal(t, fiber.StatusConflict, status)
	status, _ = testutil.Call(t, app, "POST", fmt.Sprintf("/charges/%s/exclusions", custom.ID), map[string]interface{}{"proprietaire_id": o.ID.String()})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env = testutil.Call(t, app, "GET", excl, nil)
	require.Equal(t, fiber.StatusOK, status)
	var exclusions []domain.Exclusion
	testutil.DataAs(t, env, &exclusions)
	require.Len(t, exclusions, 1)

	status, _ = testutil.Call(t, app, "DELETE", excl+"/"+o.ID.String(), nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = testutil.Call(t, app, "DELETE", excl+"/"+o.ID.String(), nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	quotas := fmt.Sprintf("/charges/%s/quotes-parts", custom.ID)
	status, env = testutil.Call(t, app, "PUT", quotas, map[string]interface{}{
		"quotes_parts": []map[string]interface{}{
			{"proprietaire_id": a.ID.String(), "quote_part": 3},
			{"proprietaire_id": o.ID.String(), "quote_part": "1"},
		},
	})
	require.Equal(t, fiber.StatusOK, status, env.Error.Message)
	status, env = testutil.Call(t, app, "GET", quotas, nil)
	require.Equal(t, fiber.StatusOK, status)
	var rows []domain.CustomQuota
	testutil.DataAs(t, env, &rows)
	assert.Len(t, rows, 2)

	status, _ = testutil.Call(t, app, "PUT", quotas, map[string]interface{}{
		"quotes_parts": []map[string]interface{}{{"proprietaire_id": a.ID.String(), "quote_part": 0}},
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

package router

import (
	"errors"
	"net/http"

	"copro-backend/internal/application/apportionment"
	authsvc "copro-backend/internal/application/auth"
	billingsvc "copro-backend/internal/application/billing"
	buildingsvc "copro-backend/internal/application/buildings"
	chargesvc "copro-backend/internal/application/charges"
	emailsvc "copro-backend/internal/application/emails"
	healthsvc "copro-backend/internal/application/health"
	"copro-backend/internal/config"
	"copro-backend/internal/constants"
	"copro-backend/internal/infrastructure/database"
	authhandler "copro-backend/internal/interfaces/handlers/auth"
	billinghandler "copro-backend/internal/interfaces/handlers/billing"
	buildinghandler "copro-backend/internal/interfaces/handlers/buildings"
	chargehandler "copro-backend/internal/interfaces/handlers/charges"
	healthhandler "copro-backend/internal/interfaces/handlers/health"
	repartitionhandler "copro-backend/internal/interfaces/handlers/repartition"
	"copro-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CreateApp opens Postgres and Redis from cfg and builds the app on them.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil, nil, errors.New("REDIS_URL is required")
	}
	rdb, err := middleware.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		if db, err = database.Open(cfg.DatabaseURL); err != nil {
			return nil, nil, nil, err
		}
	} else {
		log.Warn().Msg("no database configured, only health routes are served")
	}
	return NewApp(cfg, db, rdb), db, rdb, nil
}

// NewApp registers middleware and routes. Domain routes need db; without it
// only the health and auth surfaces are mounted.
func NewApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.Session(rdb))
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{Rdb: rdb, HealthAdminKey: cfg.HealthAdminKey}
	if db != nil {
		hh.DB = healthsvc.GormPinger{DB: db}
	}
	app.Get("/", hh.Dashboard)
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.IsProduction(),
	}
	var userFinder authsvc.UserFinder
	if db != nil {
		userFinder = &authsvc.GormUserFinder{DB: db}
	}
	ah := &authhandler.Handlers{UserFinder: userFinder, Rdb: rdb, Config: sessionCfg}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", ah.Login)
	authGroup.Get("/me", ah.Me)
	authGroup.Delete("/logout", ah.Logout)

	if db == nil {
		return app
	}

	var notifier emailsvc.Sender
	if cfg.SendinblueAPIKey != "" {
		notifier = &emailsvc.BrevoClient{
			APIKey:     cfg.SendinblueAPIKey,
			MailFrom:   cfg.MailFrom,
			SenderName: cfg.MailSenderName,
		}
	}

	bh := &buildinghandler.Handlers{Service: &buildingsvc.Service{DB: db}}
	ch := &chargehandler.Handlers{Service: &chargesvc.Service{DB: db}}
	rh := &repartitionhandler.Handlers{Service: &apportionment.Service{DB: db}}
	blh := &billinghandler.Handlers{Service: &billingsvc.Service{
		DB:       db,
		DueDays:  cfg.BillingDueDays,
		Notifier: notifier,
	}}

	view := middleware.AuthorizePermission(constants.ViewData)
	manageBuildings := middleware.AuthorizePermission(constants.ManageBuildings)
	manageCharges := middleware.AuthorizePermission(constants.ManageCharges)
	generate := middleware.AuthorizePermission(constants.GenerateCalls)
	pay := middleware.AuthorizePermission(constants.RecordPayments)

	api := app.Group("/api/v1", middleware.RequireAuth())

	// Buildings, owners, exercises
	api.Post("/immeubles", manageBuildings, bh.CreateBuilding)
	api.Get("/immeubles", view, bh.ListBuildings)
	api.Get("/immeubles/:id", view, bh.GetBuilding)
	api.Put("/immeubles/:id", manageBuildings, bh.UpdateBuilding)
	api.Delete("/immeubles/:id", manageBuildings, bh.DeleteBuilding)
	api.Post("/immeubles/:id/proprietaires", manageBuildings, bh.CreateOwner)
	api.Get("/immeubles/:id/proprietaires", view, bh.ListOwners)
	api.Put("/proprietaires/:id", manageBuildings, bh.UpdateOwner)
	api.Delete("/proprietaires/:id", manageBuildings, bh.DeleteOwner)
	api.Post("/immeubles/:id/exercices", manageBuildings, bh.CreateExercise)
	api.Get("/immeubles/:id/exercices", view, bh.ListExercises)

	// Charges
	api.Post("/immeubles/:id/charges", manageCharges, ch.CreateCharge)
	api.Get("/immeubles/:id/charges", view, ch.ListCharges)
	api.Get("/immeubles/:id/charges/totaux", view, rh.ChargeTotals)
	api.Get("/charges/:id", view, ch.GetCharge)
	api.Put("/charges/:id", manageCharges, ch.UpdateCharge)
	api.Delete("/charges/:id", manageCharges, ch.DeleteCharge)
	api.Get("/charges/:id/exclusions", view, ch.ListExclusions)
	api.Post("/charges/:id/exclusions", manageCharges, ch.AddExclusion)
	api.Delete("/charges/:id/exclusions/:proprietaireId", manageCharges, ch.RemoveExclusion)
	api.Get("/charges/:id/quotes-parts", view, ch.ListQuotas)
	api.Put("/charges/:id/quotes-parts", manageCharges, ch.ReplaceQuotas)

	// Repartition
	api.Get("/immeubles/:id/repartition", view, rh.ComputeRepartition)

	// Billing calls and payments
	api.Post("/charges/:id/appels", generate, blh.GenerateBillingCalls)
	api.Get("/immeubles/:id/appels", view, blh.ListCalls)
	api.Get("/appels/:id", view, blh.GetCall)
	api.Get("/appels/:id/paiements", view, blh.ListPayments)
	api.Post("/appels/:id/paiements", pay, blh.RecordPayment)

	return app
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}

package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/haakonmt/girobatch/internal/api/handler"
	"github.com/haakonmt/girobatch/internal/api/middleware"
	"github.com/haakonmt/girobatch/internal/api/spec"
	"github.com/haakonmt/girobatch/internal/repository"
	"github.com/haakonmt/girobatch/internal/service"
)

// Router wires handlers, middleware, and the dependencies they need.
type Router struct {
	db         *pgxpool.Pool
	redis      redis.Cmdable
	store      *repository.Store
	agreements *service.AgreementService
	batch      handler.BatchRunner
	inbound    handler.InboundProcessor

	publicRPS int
	authRPS   int
}

func NewRouter(db *pgxpool.Pool, rdb redis.Cmdable, store *repository.Store, agreements *service.AgreementService, batch handler.BatchRunner, inbound handler.InboundProcessor, publicRPS, authRPS int) *Router {
	return &Router{
		db:         db,
		redis:      rdb,
		store:      store,
		agreements: agreements,
		batch:      batch,
		inbound:    inbound,
		publicRPS:  publicRPS,
		authRPS:    authRPS,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(zap.L()))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RecoverMiddleware(zap.L()))

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	distributionHandler := handler.NewDistributionHandler(api.store)
	agreementHandler := handler.NewAgreementHandler(api.agreements)
	batchHandler := handler.NewBatchHandler(api.batch, api.inbound)

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.publicRPS))

		r.Get("/healthz/live", healthHandler.Live)
		r.Get("/healthz/ready", healthHandler.Ready)
		r.Get("/openapi.yaml", spec.OpenAPIHandler())
	})
	r.Handle("/metrics", promhttp.Handler())

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.authRPS))

		// Distributions
		r.Post("/v1/distributions", distributionHandler.CreateDistribution)
		r.Post("/v1/distributions/{kid}/reassign", distributionHandler.ReassignKID)

		// Agreements
		r.Post("/v1/agreements", agreementHandler.CreateAgreement)
		r.Post("/v1/agreements/{id}/confirm", agreementHandler.Confirm)
		r.Post("/v1/agreements/{id}/pause", agreementHandler.Pause)
		r.Post("/v1/agreements/{id}/resume", agreementHandler.Resume)
		r.Post("/v1/agreements/{id}/cancel", agreementHandler.Cancel)
		r.Patch("/v1/agreements/{id}/amount", agreementHandler.UpdateAmount)
		r.Patch("/v1/agreements/{id}/claim-day", agreementHandler.UpdateClaimDay)

		// Manual run triggers, operators only
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("admin"))
			r.Post("/v1/batch/daily", batchHandler.TriggerDaily)
			r.Post("/v1/batch/retry", batchHandler.TriggerRetry)
			r.Post("/v1/batch/inbound", batchHandler.TriggerInbound)
		})
	})

	return r
}

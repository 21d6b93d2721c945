package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-fulfillment/api/controllers"
	webhookcontrollers "github.com/angelmondragon/storefront-fulfillment/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-fulfillment/api/middleware"
	stripewebhook "github.com/angelmondragon/storefront-fulfillment/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/metrics"
)

type signingClient interface {
	SigningSecret() string
}

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	Health        map[string]controllers.Pinger
	Gatherer      prometheus.Gatherer
	Metrics       *metrics.WebhookMetrics
	StripeClient  signingClient
	StripeService webhookcontrollers.StripeWebhookService
	Dedup         stripewebhook.Deduplicator
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
	)

	env := ""
	if p.Config != nil {
		env = p.Config.App.Env
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(env))
		r.Get("/ready", controllers.HealthReady(env, p.Logger, p.Health))
	})

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeService, p.StripeClient, p.Dedup, p.Metrics, p.Logger))
	})

	return r
}

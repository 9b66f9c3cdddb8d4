package billingapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shamar-morrison/show-seek-sub003/pkg/billing"
	"github.com/shamar-morrison/show-seek-sub003/pkg/requestid"
)

// Config holds the settings of the billing HTTP surface.
type Config struct {
	// WebhookSecret is the shared secret the billing provider sends in the
	// Authorization header, either raw or bearer-prefixed.
	WebhookSecret string `env:"BILLING_WEBHOOK_SECRET,required"`
}

// Service is the HTTP surface over the entitlement reconciler: the inbound
// provider webhook and the read-only entitlement endpoint consumed by the
// client feature-gating layer.
type Service struct {
	reconciler *billing.Reconciler
	secret     string
	log        *slog.Logger
}

// New creates the billing HTTP service.
// Panics if the reconciler is nil or the secret is empty to fail fast: an
// unauthenticated webhook endpoint must never come up.
func New(reconciler *billing.Reconciler, cfg Config, log *slog.Logger) *Service {
	if reconciler == nil {
		panic("billingapi: Reconciler is required")
	}
	if cfg.WebhookSecret == "" {
		panic("billingapi: webhook secret is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Service{
		reconciler: reconciler,
		secret:     cfg.WebhookSecret,
		log:        log,
	}
}

// Handle returns the service router, mountable under any prefix.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)

	r.With(s.requireSharedSecret).Post("/webhooks/billing", s.handleWebhook)
	r.Get("/users/{appUserID}/entitlement", s.handleEntitlement)

	return r
}

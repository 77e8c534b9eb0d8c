// Package http wires the auth services to their HTTP surface.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/loandocs/loandocs/internal/auth/domain"
	"github.com/loandocs/loandocs/internal/auth/service"
	"github.com/loandocs/loandocs/internal/auth/store"
	"github.com/loandocs/loandocs/pkg/httpx"
	"github.com/loandocs/loandocs/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	TokenService     *service.TokenService
	SessionService   *service.SessionService
	MagicLinkService *service.MagicLinkService
	UserService      *service.UserService
	AuditService     *service.AuditService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerMagicLinks()
	r.registerExchange()
	r.registerVerification()
	r.registerTokens()
	r.registerAccount()
	r.registerSessions()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerMagicLinks() {
	h := &MagicLinkHandler{MagicLinkService: r.MagicLinkService}

	// POST /magic-link - strict IP limit on top of the persistent
	// per-email counter inside the service
	r.Mux.Handle("POST /v1/auth/magic-link",
		httpx.Chain(http.HandlerFunc(h.HandleRequest),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Link management is an elevated-role operation
	admin := func(next http.HandlerFunc) http.Handler {
		return httpx.Chain(next,
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RequireAnyRole(string(domain.RoleAdmin), string(domain.RoleSuperAdmin)),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /v1/auth/magic-links/{id}/resend", admin(h.HandleResend))
	r.Mux.Handle("POST /v1/auth/magic-links/{id}/revoke", admin(h.HandleRevoke))
	r.Mux.Handle("POST /v1/auth/magic-links/{id}/extend", admin(h.HandleExtend))
}

func (r *Router) registerExchange() {
	h := &ExchangeHandler{SessionService: r.SessionService}

	// POST /exchange - strict rate limit (authentication attempts)
	r.Mux.Handle("POST /v1/auth/exchange",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerVerification() {
	h := &VerificationHandler{SessionService: r.SessionService}

	r.Mux.Handle("POST /v1/auth/code/request",
		httpx.Chain(http.HandlerFunc(h.HandleRequest),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/code/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerTokens() {
	h := &TokenHandler{TokenService: r.TokenService}

	// /validate is hit by every resource service request, so it gets the
	// lenient tier
	r.Mux.Handle("POST /v1/auth/validate",
		httpx.Chain(http.HandlerFunc(h.HandleValidate),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAccount() {
	h := &UserHandler{UserService: r.UserService}

	r.Mux.Handle("POST /v1/auth/password",
		httpx.Chain(http.HandlerFunc(h.HandleSetPassword),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{
		SessionService: r.SessionService,
		AuditService:   r.AuditService,
	}

	admin := func(next http.HandlerFunc) http.Handler {
		return httpx.Chain(next,
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RequireAnyRole(string(domain.RoleAdmin), string(domain.RoleSuperAdmin)),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /v1/auth/sessions/{id}", admin(h.HandleGet))
	r.Mux.Handle("POST /v1/auth/sessions/{id}/revoke", admin(h.HandleRevoke))
	r.Mux.Handle("GET /v1/auth/sessions/{id}/audit", admin(h.HandleAudit))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}

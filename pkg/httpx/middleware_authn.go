package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/loandocs/loandocs/pkg/jwtx"
	"github.com/loandocs/loandocs/pkg/slogx"
)

// TokenAuthenticator is the single funnel for bearer tokens: it verifies
// the JWT and re-validates it against live session state.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (jwtx.Claims, error)
}

// AuthnMiddleware extracts and validates the bearer session token, then
// injects the resulting claims into the request context.
func AuthnMiddleware(a TokenAuthenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := a.Authenticate(ctx, raw)
			if err != nil {
				writeBearerError(w, "token verification failed")
				log.Warn("bearer authentication failed", "err", err)
				return
			}

			ctx = contextWithAuth(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAnyRole permits the request only when the authenticated caller
// holds one of the listed roles. Must run after AuthnMiddleware.
func RequireAnyRole(required ...string) Middleware {
	want := make(map[string]struct{}, len(required))
	for _, role := range required {
		want[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := want[roleFromCtx(r.Context())]; !ok {
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", roles="`+strings.Join(required, " ")+`"`)
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte("insufficient_role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func contextWithAuth(ctx context.Context, c jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject)
	ctx = context.WithValue(ctx, CtxKeySessionID, c.SID)
	ctx = context.WithValue(ctx, CtxKeyRole, c.Role)
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return ctx
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}

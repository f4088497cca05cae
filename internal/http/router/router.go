// Package router wires the /oauth routes onto chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	ctrl "github.com/dropDatabas3/authgrid/internal/http/controllers/oauth"
	mw "github.com/dropDatabas3/authgrid/internal/http/middlewares"
	"github.com/dropDatabas3/authgrid/internal/rate"
)

// Deps contains the router dependencies. Limiters are optional; nil means
// no limit on that surface.
type Deps struct {
	Controllers  *ctrl.Controllers
	TokenLimiter rate.Limiter
	DeviceLimiter rate.Limiter
}

// New builds the public API handler.
func New(d Deps) http.Handler {
	c := d.Controllers

	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithSecurityHeaders(),
		mw.WithLogging(),
	)

	r.Route("/oauth", func(r chi.Router) {
		r.Use(mw.WithNoStore())

		r.Get("/authorize", c.Authorize.Authorize)
		r.With(limit(d.TokenLimiter, mw.IPAndClientRateKey)).Post("/token", c.Token.Token)
		r.Post("/introspect", c.Introspect.Introspect)
		r.Post("/revoke", c.Revoke.Revoke)
		r.With(limit(d.DeviceLimiter, mw.IPAndClientRateKey)).Post("/device/code", c.Device.Code)
		r.Post("/device/verify", c.Device.Verify)
		r.Post("/par", c.PAR.Push)
		r.Get("/jwks.json", c.Discovery.JWKS)
	})

	r.Get("/.well-known/oauth-authorization-server", c.Discovery.Metadata)

	return r
}

func limit(l rate.Limiter, key mw.RateKeyFunc) mw.Middleware {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw.WithRateLimit(mw.RateLimitConfig{Limiter: l, KeyFunc: key})
}

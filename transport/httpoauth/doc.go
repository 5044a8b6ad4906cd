// Package httpoauth binds the OAuth engine to net/http.
//
// NewRequest converts an *http.Request into the engine's framework
// independent request, and WriteResponse writes the engine's response back
// as JSON or as a redirect. Handler serves the token and authorization
// endpoints and provides an Authenticate middleware for protected
// resources:
//
//	h, err := httpoauth.New(httpoauth.Config{Server: srv, Logger: logger})
//	if err != nil {
//		return err
//	}
//	r := chi.NewRouter()
//	h.Register(r)
//	r.With(h.Authenticate("read")).Get("/api/me", func(w http.ResponseWriter, r *http.Request) {
//		token, _ := httpoauth.TokenFromContext(r.Context())
//		...
//	})
//
// Every response carries the hardening headers of security.SetSecurityHeaders
// and an X-Request-ID.
package httpoauth

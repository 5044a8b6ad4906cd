// Package server implements the three OAuth 2.0 endpoints of the engine on
// top of the framework independent oauth.Request and oauth.Response:
//
//   - TokenHandler authenticates the client and dispatches to a grant type
//     (RFC 6749 section 3.2). Extension grants register through
//     Config.ExtendedGrantTypes.
//   - AuthorizeHandler validates an authorization request, resolves the
//     client and the resource owner and redirects with a code or an access
//     token (RFC 6749 section 3.1). Failures after the redirect target is
//     known are reported through the redirect.
//   - AuthenticateHandler resolves a bearer token to the stored access
//     token (RFC 6750).
//
// Server bundles all three over one model:
//
//	srv, err := server.New(server.Options{
//		Model:  store,
//		Config: &server.Config{AccessTokenLifetime: 30 * time.Minute},
//		Logger: logger,
//	})
//	if err != nil {
//		return err
//	}
//	token, err := srv.Token(ctx, req, res)
//
// Every handler writes its outcome into the response, and also returns any
// error so callers can log or observe it.
package server

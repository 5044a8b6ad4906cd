// Package memory provides an in-memory model for the OAuth engine.
//
// Store implements every capability interface of the root package using
// maps behind a sync.RWMutex. Client secrets and passwords are kept as
// bcrypt hashes. A background loop drops expired tokens and codes.
//
// It is suitable for development, testing and single instance
// deployments. For persistence or several instances use storage/redis.
//
// Example usage:
//
//	store := memory.New(memory.Config{DefaultScope: "profile"})
//	defer store.Stop()
//
//	_ = store.RegisterClient(ctx, storage.ClientRecord{
//		ID:     "cli",
//		Grants: []string{oauth.GrantTypePassword, oauth.GrantTypeRefreshToken},
//	}, "secret")
//
//	srv, err := server.New(server.Options{Model: store})
package memory

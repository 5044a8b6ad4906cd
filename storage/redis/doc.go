// Package redis provides a Redis backed model for the OAuth engine, built on
// github.com/redis/go-redis/v9.
//
// Store implements every capability interface of the root package.
//
// # Key Layout
//
// All keys share a configurable prefix (default "oauth2:"):
//
//	oauth2:client:<client_id>    client record, no expiry
//	oauth2:user:<username>       user record, no expiry
//	oauth2:access:<token>        token record, expires with the access token
//	oauth2:refresh:<token>       token record, expires with the refresh token
//	oauth2:code:<code>           code record, expires with the code
//
// A token is written under both of its keys in one MULTI/EXEC
// transaction. Authorization codes are consumed with GETDEL and refresh
// tokens with DEL, so a code or refresh token can be redeemed once even
// when several instances share the server.
//
// # Encryption at Rest
//
// Records are JSON. With Config.Encryptor set they are sealed with
// AES-256-GCM before they are written:
//
//	key, _ := security.KeyFromBase64(os.Getenv("OAUTH_ENCRYPTION_KEY"))
//	enc, _ := security.NewEncryptor(key)
//	store, err := redis.New(redis.Config{
//		Address:   "localhost:6379",
//		Encryptor: enc,
//	})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
package redis

// Package storage holds what the reference models share: client and user
// records with bcrypt hashed secrets, the default scope policy, the sealed
// JSON encoding of stored tokens and codes, and storage telemetry.
//
// Implementations are provided in subpackages:
//   - storage/memory: in-process maps with a background cleanup loop
//   - storage/redis: Redis backed model with key expiry and optional
//     encryption at rest
//
// Both implement every capability interface of the root oauth package, so
// either can be passed as the model to server.New.
package storage

// Package instrumentation provides OpenTelemetry instrumentation for the
// OAuth 2.0 engine.
//
// It offers:
//   - Metrics: counters and histograms for issued tokens, rejected grants,
//     authorization outcomes, storage operations and the HTTP binding
//   - Traces: spans around grant handling, authorization, authentication
//     and storage calls
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "my-oauth-service",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
//	srv, err := server.New(server.Options{
//		Model:           store,
//		Instrumentation: inst,
//	})
//
// When Enabled is false every provider is a no-op, so components can always
// record without nil checks. Use Config.TracerProvider or
// Config.MeterProvider to plug in exporters configured elsewhere.
//
// # Security
//
// Span and metric attributes carry identifiers (client ID, grant type,
// scope) and never credentials. Tokens, codes and secrets must not be
// recorded.
package instrumentation

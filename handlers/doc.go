// Package handlers provides ready-made pipeline handlers for intercepted
// methods: logging, metrics, tracing, validation, filtering, short-circuit
// and caching, and the reliability pair circuit breaker and retry.
//
// Every handler works at its zero value, so it can be referenced from a
// marker and resolved by a container that just allocates it:
//
//	func (*Store) InterceptionMarkers() policy.Markers {
//		return policy.Markers{
//			"Save": {policy.ViaInterface[*handlers.Logging](), policy.ViaInterface[*handlers.Retry]()},
//		}
//	}
//
// Chains assembled in code are built with ChainBuilder:
//
//	p := handlers.NewChainBuilder(logger).
//		WithLogging().
//		WithTracing(nil).
//		WithRetry(handlers.RetryConfig{MaxRetries: 3}).
//		Build()
package handlers

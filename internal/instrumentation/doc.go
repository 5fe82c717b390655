// Package instrumentation provides OpenTelemetry metrics and tracing for
// calendaragent.
//
// A Provider owns the meter and tracer providers. Metrics exposes typed
// recorders for operation invocations, agent loop runs, LLM calls, intent
// classification and plan feedback decisions. A zero or nil *Metrics is a
// valid no-op so components can be constructed without telemetry in tests.
//
// Metrics are exported through Prometheus by default:
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//	mux.Handle("/metrics", provider.PrometheusHandler())
//
// Label values derived from model output go through BoundLabel or
// SanitizeLabel first.
package instrumentation

// Package telemetry holds the Prometheus collectors and OpenTelemetry spans
// used by sessions.
//
// Both Metrics and Tracer are nil-safe so a session built without them pays
// only a nil check:
//
//	metrics := telemetry.NewMetrics(telemetry.WithNamespace("studio"))
//	s := session.New(tr, reg,
//	    session.WithMetrics(metrics),
//	    session.WithTracer(telemetry.NewTracer("studio")),
//	)
package telemetry

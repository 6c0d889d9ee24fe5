// Package otel bridges authkit's in-process counters to OpenTelemetry.
//
// [NewExporter] registers an Int64ObservableCounter per authkit metric
// plus one for dropped audit events. A single callback reads
// [authkit.Engine.MetricsSnapshot] on each collection cycle.
//
// The package never owns a MeterProvider — callers supply the Meter.
package otel

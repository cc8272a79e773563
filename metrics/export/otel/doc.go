// Package otel bridges authcore's internal counters onto OpenTelemetry.
//
// [NewExporter] registers one Int64ObservableCounter per engine metric plus
// the audit-drop counter; a single callback reads
// [authcore.Engine.MetricsSnapshot] on each collection cycle. The caller
// owns the MeterProvider; this package only registers instruments on the
// supplied Meter and never mutates engine state.
package otel

// Package sinks implements progress consumers: structured logging, Prometheus
// counters, and a run repository writer.
package sinks

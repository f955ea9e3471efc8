// Package progress carries crawl milestones from listeners to pluggable sinks.
// Emitting never blocks the crawl: a Hub buffers events, batches them on a
// background goroutine, and hands each batch to every sink in turn.
package progress

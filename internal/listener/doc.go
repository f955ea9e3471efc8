// Package listener provides crawler.Listener implementations: zap logging,
// progress events, fan-out, and the halting wrapper that stops an engine once
// its frontier is exhausted.
package listener

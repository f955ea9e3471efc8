// Package crawler implements the breadth-first crawl engine. An Engine walks
// the summoner graph from a seed: it expands summoners accepted by its
// summoner filter, emits matches accepted by its match filter to an output
// handler, and queues every participant it has not seen yet.
//
// Engines move through Idle, Running, and then Completed or Halted. Listener
// hooks return a Signal; a Halt signal stops the run and surfaces a
// *HaltError to the caller.
package crawler

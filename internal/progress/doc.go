// Package progress carries analysis lifecycle events from the orchestrator to
// pluggable sinks. Emit never blocks: events are buffered, batched on a
// background goroutine and fanned out to metrics, logging and the run index.
//
// The per-run progress log that clients poll is written synchronously by the
// crawl package; this package only feeds secondary consumers.
package progress

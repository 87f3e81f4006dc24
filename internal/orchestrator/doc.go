// Package orchestrator owns the lifecycle of an analysis run.
//
// Start validates the target, creates the progress log and queues the run on
// a bounded worker pool. Execute drives one queued run from browser launch to
// a terminal log status: crawl, description enhancement, artifact save and
// finalization. Every acquired browser session is closed exactly once, on
// success, failure and panic alike. Clients observe a run only through its
// progress log.
package orchestrator

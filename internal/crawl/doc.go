// Package crawl drives one analysis run's breadth-first traversal of a site
// and reports every step to the run's progress log.
//
// A Scheduler owns no browser state; it is handed an analyzer.Session by the
// caller and returns the collected SiteRecord. The frontier admits each URL at
// most once and the visited count never exceeds the configured page cap.
package crawl

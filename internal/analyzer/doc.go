// Package analyzer defines the core types shared across the site analysis
// subsystems: the run log model and its merge rules, the site record written
// per domain, the collaborator interfaces, and the error taxonomy.
package analyzer

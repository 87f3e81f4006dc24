// Package store defines interfaces for persistence dependencies such as the
// analysis run index. Implementations live in internal/storage; this package
// must not import database drivers or concrete clients.
package store

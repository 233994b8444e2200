// Package sqlrepo is a generic data-access layer over bun. It offers
// repositories bound to one model type, a unit of work that scopes a session
// to a function call, and filter converters that turn declarative filters
// into WHERE predicates.
//
// Service is the simplest entry point. It runs every call in its own unit of
// work over the database installed with database.InitDB or database.SetDB.
package sqlrepo

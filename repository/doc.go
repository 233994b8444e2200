// Package repository binds CRUD, search, pagination, disable and upsert
// operations for one bun model type to a database session.
//
// Repositories are built with NewRepository from a Config value:
//
//	cfg := repository.DefaultConfig().
//		WithDisable("id", "archived", types.DisableFieldBool)
//	repo, err := repository.NewRepository[Article](session, cfg)
//
// Storage failures are returned as *Error with a database.SQLError kind.
// Filter, attribute, query and configuration errors are returned unchanged.
package repository

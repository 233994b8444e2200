// Package queries builds bun statements for one entity type and executes
// them against a database.Session.
//
// BaseQuery assembles select, count, insert, update, delete and disable
// statements without running them. Query runs them, scans the results and
// applies the flush-or-commit policy chosen by the caller.
package queries

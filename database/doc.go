// Package database provides connection management, sessions, migrations,
// foreign key handling, configuration types, logging, query hooks and SQL
// error classification built on top of Bun.
package database

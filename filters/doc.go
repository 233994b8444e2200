// Package filters converts declarative filter values into bun WHERE clauses
// using one of three strategies: simple equality maps, advanced
// field/operator/value triples and django-style field__lookup keys.
package filters

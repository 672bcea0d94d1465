// Package guard inspects data-access statements before they are executed.
//
// A Guard strips string literals and comments from a statement, runs the
// cleaned text against an ordered, immutable table of attack signatures and
// checks every referenced table against a whitelist. A rejection is fatal to
// the calling operation: the statement must not reach the database. Every
// outcome is reported to an EventSink without blocking the caller.
//
// The Sanitizer cleans parameter values (control characters, length) and the
// Executor chains validate, sanitize and execute in front of database/sql.
package guard

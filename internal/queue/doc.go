// Package queue persists scanned submissions in SQLite and exposes helpers
// for driving their lifecycle.
//
// The Store manages database connections, schema initialization, student
// assignment, continuation linking, stats queries, heartbeat tracking, and
// stuck-item recovery. Queue items capture identification data, analysis
// results, and the primary/continuation page topology so the processing
// stages can coordinate without additional state.
//
// Treat this package as the single source of truth for queue semantics: the
// one-primary-per-student invariant and the depth-one continuation forest are
// enforced here, inside transactions, rather than re-checked at call sites.
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package queue

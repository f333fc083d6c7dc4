// Package dao holds the record accessors.
//
// Accessor[T, PT] provides insert, bulk insert, point lookup and point delete
// for any entity embedding entity.Base. Every mutating call runs against the
// caller's *session.Session and commits it; on failure the session is rolled
// back and the error is returned tagged with ErrConstraint or
// ErrConnectivity where it applies. Missing rows are reported as mo.None.
//
// UserAccessor and MessageAccessor add the entity specific queries.
package dao

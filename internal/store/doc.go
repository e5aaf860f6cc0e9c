// Package store provides read-only access to the normalized record tables
// the engine analyzes.
//
// A Snapshot is an immutable in-memory copy of the input tables plus the
// join indexes every analysis stage needs: payment sums per order, the
// first review per order, the person identity behind each order-level
// customer id, and the English category lookup with its documented
// fallback. Stages share one snapshot concurrently without locking; nothing
// mutates it after Index.
//
// Loading is an external-collaborator concern and deliberately thin: the
// MySQL loader scans the eight tables row by row and performs no analysis.
package store

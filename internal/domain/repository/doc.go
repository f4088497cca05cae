// Package repository defines the domain repository interfaces.
//
// These interfaces are business contracts, independent of the underlying
// storage (PostgreSQL, in-memory). Concrete implementations live under
// internal/store/.
//
// Conventions:
//   - Context is always the first parameter.
//   - Entities reference each other by id, never by pointer; relationships
//     are resolved through lookups, so there are no cyclic object graphs.
//   - Single-use invariants (code consumption, refresh rotation, device
//     redemption) are expressed as conditional updates that report whether
//     the row transitioned: two concurrent consumers race safely and exactly
//     one observes true.
//   - Domain errors are in errors.go.
package repository

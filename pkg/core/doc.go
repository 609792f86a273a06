// Package core provides the domain models and interfaces for hookq.
//
// This package contains:
//   - The Job data model with GORM annotations
//   - The JobStore interface defining the persistence contract
//   - The Locker interface for cross-process mutual exclusion
//   - Sentinel errors shared across packages
//
// Most users should import the root package github.com/orderflow/hookq
// instead of this package directly.
package core

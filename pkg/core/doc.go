// Package core defines the shared language of the fieldshift system.
//
// This package contains:
//   - Domain entities (Variable, Schema, FieldMap, TransferConfig, ...)
//   - Service interfaces (Store, ProjectClient)
//   - The field compatibility model and the run/batch result types
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core

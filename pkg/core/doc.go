// Package core defines the shared language of the leapquery system.
//
// This package contains:
//   - The node model (host expressions, relational nodes, command nodes)
//   - The traversal framework (Visitor, VisitChildren, Rewrite, Inspect)
//   - Per-translation state (CompilationContext, ScopedDictionary)
//   - Boundary contracts (MappingResolver, Executor, QueryCommand)
//   - The translation error taxonomy
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core

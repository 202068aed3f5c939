// Package scope provides read-mostly variable views used as evaluation
// contexts.
//
// A [Resolver] layers two delegate views, root and local, and prefers root.
// With local access enabled, the reserved key "_" names the local view as a
// whole so an expression can reach a local variable shadowed by a root one.
//
// [Lazy] decorates a view so nested maps are wrapped on read instead of
// copied, and [Project] materializes only the subtrees an expression reads.
package scope

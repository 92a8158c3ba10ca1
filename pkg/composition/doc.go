// Package composition implements the registry-driven engine that assembles
// the shop domain out of independently written model definitions and optional
// feature packs.
//
// Models and features are registered once at load time into a Registry. A
// Context then binds model names to concrete type descriptors, selects the
// features a deployment wants, and applies everything in a single pass:
// models first, then features in selection order, then deferred setup
// actions. Application happens once at startup; every registry is read-only
// afterwards and safe to share across request-handling goroutines.
//
// Each bound type carries an Events registry (named lifecycle extension
// points with before/after/around observers) and a record of which features
// were applied, and contributes schema fragments that the SchemaRegistry
// aggregates per model for migration generation.
package composition

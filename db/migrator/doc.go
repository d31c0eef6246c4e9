// Package migrator implements the schema migration engine.
//
// Features:
// - Supports both forward (`apply`) and rollback migrations
// - Loads SQL migration files with structured naming (`{id}.sql`) and
//   optional `-- depends:` / `-- rollback:` markers
// - Orders migrations by a dependency graph with deterministic tie-breaking
// - Verifies applied migrations against content hashes recorded at apply time
// - Guards concurrent runs with an advisory row lock in the target store
// - Tracks state and chronological history in dedicated bookkeeping tables
package migrator

// Package cache implements the two-tier result cache with single-flight
// request deduplication.
//
// The ephemeral tier is a bounded LRU with TTL; the durable tier is a
// Badger key-value store whose entries outlive process restarts. Reads
// check memory first and promote durable hits. Writes land in memory
// synchronously and in the durable tier best-effort: an unreachable
// durable store degrades the layer to memory-only operation instead of
// failing requests.
//
// Do ensures at most one computation runs per fingerprint. Concurrent
// callers for the same fingerprint await the in-flight result; a caller
// that abandons its request stops waiting without cancelling the
// computation, which finishes under a detached context and still
// populates both tiers.
package cache

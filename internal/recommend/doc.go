// Package recommend coordinates the recommendation pipeline: it
// normalizes a request into a cache fingerprint, consults the two-tier
// cache under single-flight, and on a miss runs hybrid search followed
// by route construction, writing the serialized result back through
// the cache. Cached payloads are stored as serialized bytes and decoded
// per caller, so no two callers ever share a mutable result.
package recommend

// Package fashiondeck is the ML mediation core for FashionDeck outfit
// recommendations. It turns unstructured fashion queries into structured
// plans and ranks candidate outfits by vector similarity, while shielding
// two expensive upstreams - a completion API and a CLIP-style visual
// encoder - behind caching, batching, and retry policies.
//
// # Architecture
//
// The core is a set of small, independently testable packages wired
// together once at startup (no ambient singletons):
//
//	caller
//	  │
//	  ▼
//	llm          structured-output parsing: prompt → ParsedQuery,
//	  │          ParsedQuery → OutfitPlan, outfits → scores
//	  ▼
//	encoder      text/image → 512-dim L2-normalized embeddings
//	  │
//	  ▼
//	cache        deterministic keys, TTL + permanent KV buckets,
//	  │          single-flight dedup of identical computations
//	  ▼
//	similarity   pgvector nearest-neighbor search and pairwise
//	             coherence scoring
//
// pkg/retry wraps every edge that crosses a process boundary; errors
// carries the shared failure taxonomy; metric exposes Prometheus
// instrumentation; pipeline runs the background embedding backlog sweep
// and the aesthetic precompute job.
//
// HTTP routing, request validation, and response serialization live in a
// separate gateway and consume the core through the service facade.
package fashiondeck

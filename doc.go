// Package victualiser provides a three-stage pipeline for gathering,
// enriching, and serving social-media stream records.
//
// # Architecture
//
// The pipeline is three independent stages connected by JSONL sinks
// (one JSON record per line). Each stage runs as its own process
// invocation and the sinks are the only contract between them:
//
//	┌──────────────┐         ┌──────────────┐         ┌──────────────┐
//	│  StreamGate  │         │   Enricher   │         │    Server    │
//	│   (gather)   │────────▶│ (transform)  │────────▶│ fields /     │
//	│              │  raw    │              │enriched │ project /    │
//	│ count/time   │  sink   │ 1:1, ordered │  sink   │ aggregate    │
//	│ limits,      │ (.jsonl)│ sentiment,   │ (.jsonl)│              │
//	│ repost skip  │         │ noun phrases │         │              │
//	└──────────────┘         └──────────────┘         └──────────────┘
//
// Stages may also be chained through pipes by setting the sink paths
// to "-"; the gate treats a downstream consumer closing its end of the
// pipe as a normal way to end gathering.
//
// All three stages are components implementing component.Discoverable
// and are created through the component registry:
//
//	registry := component.NewRegistry()
//	componentregistry.Register(registry)
//	comp, _ := registry.CreateComponent("gate-main", "stream-gate", rawConfig, deps)
//
// # Framework Packages
//
// Pipeline stages:
//   - input/gate: stream gate (limits, repost filtering, raw sink)
//   - processor/enrich: per-record enrichment (normalization, sentiment,
//     noun phrases, client extraction)
//   - server: field discovery, TSV projection, hierarchical aggregation
//
// Infrastructure:
//   - component: component discovery, registry, port definitions
//   - componentregistry: registration of the pipeline stages
//   - source: upstream provider adapters (replay, websocket, NATS)
//   - sink: JSONL writer and truncation-tolerant scanner
//   - record: raw and enriched record schemas
//   - config: YAML configuration with JSON Schema validation
//   - metric: Prometheus metrics registry and endpoint
//   - errors: structured error classification
//   - pkg/retry: exponential backoff retry policies
//
// # Binary
//
// The victualiser binary exposes one subcommand per stage operation:
//
//	victualiser gather -f "coffee" -o data/raw.jsonl
//	victualiser transform -i data/raw.jsonl -o data/enriched.jsonl
//	victualiser fields -i data/enriched.jsonl
//	victualiser project -i data/enriched.jsonl text language source
//	victualiser aggregate -i data/enriched.jsonl language source
package victualiser

// Package device holds the SwitchBot device catalogue and the durable
// per-device context.
//
// Each configured or discovered device is described by a Device. Its
// persisted side-car record, the Context, carries the last committed
// canonical state, the firmware revision and per-device overrides. The
// reconciliation machine seeds its state from the Context at construction
// and writes it back whenever canonical state changes.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                           Registry                           │
//	│                                                              │
//	│  ┌──────────────────┐   ┌───────────────────┐   ┌─────────┐  │
//	│  │ device catalogue │   │  context cache    │──▶│  repo   │  │
//	│  │  (Register)      │   │ (Get/SaveContext) │   │ SQLite  │  │
//	│  └──────────────────┘   └───────────────────┘   └─────────┘  │
//	└──────────────────────────────────────────────────────────────┘
//
// State history is recorded separately by SQLiteStateHistoryRepository,
// which the bridge uses as the local fallback history sink.
//
// # Thread Safety
//
// Registry and the SQLite repositories are safe for concurrent use.
package device

// Package events defines the observer events the orchestrator publishes while
// a turn progresses, and the Hook interface consumers implement to receive
// them.
//
// Event hierarchy:
//   - Event: base interface for all observer events
//     ├── Question:  a user question was submitted
//     ├── Chunk:     one provider produced an incremental fragment
//     ├── Answer:    one provider's answer is complete
//     ├── Status:    one provider's loading status changed
//     ├── Committed: the turn was persisted
//     └── Error:     a provider or commit failure, never fatal
//
// Every event carries the chat room id and the turn id so consumers can route
// and correlate without extra state. Events serialize to JSON with a type tag
// so they can travel over a broker (see the broker package).
package events

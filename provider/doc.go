// Package provider defines the uniform streaming capability each backend
// exposes to the orchestration core, and the event sequence it produces.
//
// A Session wraps exactly one backend. Calling Stream launches a lazy,
// cancellable event sequence delivered over a channel:
//
//   - Chunk: an incremental response fragment
//   - Error: a terminal failure of this session's sequence only
//   - Done:  successful completion of the sequence
//
// Sessions never return mid-stream failures as Go errors; they emit an Error
// event and close the channel, so one backend failing cannot abort its
// siblings. Cancelling the context releases the underlying transport and ends
// the sequence.
package provider

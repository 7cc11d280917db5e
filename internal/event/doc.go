// Package event carries the per-operation event stream.
//
// Every operation owns one [Bus]. The bus keeps an ordered, bounded buffer of
// every [Event] emitted for the operation and fans each new event out to the
// current subscribers synchronously, in emission order. A late observer calls
// [Bus.Subscribe] (or [Bus.Replay]) and receives the buffered backlog followed
// by every later event, with no gap and no duplicate.
//
// # Event Kinds
//
//   - [KindOutput]: a raw agent message (JSON text)
//   - [KindError]: an error string
//   - [KindComplete]: a terminal marker with payload {"exitCode":N}
//   - [KindStatus]: a human-readable status line
//
// A complete event without a child label ends the whole operation; see
// [Event.IsPipelineComplete]. Complete events tagged with a child label only
// end that child.
//
// # Buffer Policy
//
// When the buffer grows past its maximum (default [DefaultMaxBuffered]) it is
// trimmed to the most recent entries (default [DefaultTrimTo]). A bus created
// with a non-positive maximum never trims.
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Emission is serialized, so every
// subscriber sees events in the order they were appended. Subscribers must not
// emit on the bus that is delivering to them.
package event

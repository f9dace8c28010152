// Package conversation holds the per-session chat state of the assistant:
// the transcript, the search mode toggle, the submit lifecycle and the
// selected vehicle. Sessions live in a Manager that evicts idle ones and
// publishes every transcript change as an Event.
package conversation

// Package bridge owns the control state shown on the web page and turns
// requests from the page into biometric operations.
//
// A Bridge is the only writer of types.BridgeState. Readers get deep copies
// through Snapshot, and every change is pushed to subscribers and to the
// WebSocket transport: log appends as log-update messages, other changes as
// state-sync messages, and operations as operation-start followed by
// operation-complete.
//
// Requests arrive two ways. HandleHTTP resolves the JSON API served by the
// control server; HandleInbound handles messages from WebSocket clients.
// Both end up in the same methods, so an operation started from one surface
// is visible on the other.
//
// At most one enrollment or validation runs at a time. CancelCurrentOperation
// cancels the operation's context and reports it as cancelled immediately;
// the collaborators see the cancellation through ctx.
package bridge

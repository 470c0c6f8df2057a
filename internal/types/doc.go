// Package types holds the data model shared by the bridge, the WebSocket
// manager and the HTTP surface: endpoint configurations, log entries,
// operation results and the mirrored application state.
//
// Values in this package are plain data. Clone methods return deep copies so
// that a snapshot handed to a listener or serialized onto the wire can never
// alias state owned by the bridge.
package types

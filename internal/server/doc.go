// Package server implements the embedded control server.
//
// The server is deliberately small: a raw net.Listener accept loop, one
// goroutine per TCP connection, and a hand-written HTTP/1.1 reader. Each
// connection carries exactly one request. The request is either answered
// with a JSON response and closed, or upgraded to a WebSocket and handed to
// the wsmanager package for the rest of its life.
//
// # Lifecycle
//
//	Stopped -> Starting -> Running -> Stopping -> Stopped
//
// Start tries the preferred port, then every port of the configured range,
// and fails with ErrNoAvailablePorts if none can be bound or ErrStartTimeout
// if binding takes too long. Every successful Start generates a fresh
// six-digit password for the "admin" user; Stop destroys it.
//
// # Request Handling
//
// For every request, in order:
//  1. Read until the blank line and Content-Length bytes of body have arrived
//  2. Parse; malformed input is answered with 400
//  3. Reject clients that exhausted their failed-authentication budget (429)
//  4. Check Basic authentication (401 with a WWW-Authenticate challenge)
//  5. Upgrade requests go to the WebSocket manager; /api/status is answered
//     here; everything else goes to the APIHandler
//
// All bodies are JSON. Failures carry {"success": false, "message": "..."}.
//
// # Usage Example
//
//	mgr := wsmanager.New(wsmanager.DefaultConfig())
//	srv := server.New(server.DefaultConfig(), mgr, bridge)
//
//	status, err := srv.Start(ctx, 8080)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(status.URL, status.Username, status.Password)
//
//	defer srv.Stop(context.Background())
//
// # Host Lifecycle
//
// HandleLifecycle stops the server when the host moves to the background
// (unless StopOnBackground is false) and forwards network loss and
// restoration to the WebSocket manager. Returning to the foreground does not
// restart the server.
package server

// Package verifyapi is the client for the remote verification API that
// biometric enrollment and validation report to.
//
// An enrollment sends the device's public key to the configured enroll
// endpoint; a validation sends a signed payload and its signature to the
// validate endpoint. Both endpoints are described by a types.EndpointConfig,
// which may carry extra headers and a custom body template.
//
// # Request bodies
//
// Without a template the client sends JSON:
//
//	enroll:   {"publicKey": "..."}
//	validate: {"payload": "...", "signature": "..."}
//
// A template replaces the body verbatim after expanding {{publicKey}},
// {{payload}}, {{signature}} and {{timestamp}}. Substituted values are
// JSON-string escaped, so templates are written as JSON with the placeholders
// inside quotes. GET and DELETE requests carry no body; the same values are
// sent as query parameters instead.
//
// # Error handling
//
// Failures are returned as *APIError with a category (network, timeout, HTTP,
// auth, parse, validation). Network errors and 5xx responses are retried with
// exponential backoff; 4xx responses and parse errors are not.
//
//	res, err := client.EnrollPublicKey(ctx, cfg, publicKey)
//	if err != nil {
//	    fmt.Println(verifyapi.ShortMessage(err))
//	}
package verifyapi

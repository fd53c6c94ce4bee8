// Package client is the HTTP transport to the SyntheticSoul agent API.
//
// # Overview
//
// The package provides:
//  1. A transport contract (the Client interface) used by the services
//     layer: raw authorised requests (Do) plus the typed auth endpoints
//     Guest, Login, Claim, Refresh, Me and Logout.
//  2. HTTPClient, the net/http implementation. It resolves paths against
//     the API base URL, attaches the bearer token and the client/session
//     identifiers, and keeps a cookie jar so the server's HTTP-only refresh
//     cookie and readable CSRF cookie behave as they would in a browser.
//  3. Body helpers (ReadBody, MessageOf) that decode JSON-or-text bodies
//     and pull a human-readable message out of the API's error shapes.
//
// # Error Handling
//
// Transport failures wrap ErrUnavailable. Non-2xx responses from the typed
// endpoints are returned as *HTTPError, which matches ErrUnauthorized via
// errors.Is for 401 and 403. Context cancellation is passed through
// unchanged so callers can tell an abort from an outage.
//
// HTTPClient is safe for concurrent use.
package client

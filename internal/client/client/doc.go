// Package client talks to the linkkeeper HTTP API.
//
// Client is the transport-agnostic contract used by the CLI services;
// HTTPClient implements it over JSON/HTTP. The session token is passed
// explicitly on every authenticated call, so an HTTPClient holds no user
// state and is safe for concurrent use.
//
// Failures are reported as sentinel errors matchable with errors.Is:
// ErrUnavailable (transport failure or 503), ErrUnauthorized, ErrConflict,
// ErrNotFound and ErrInvalidInput. Server-side messages are kept in
// *APIError.
package client

// Package auth provides API key authentication for the claimdesk server.
//
// APIKeyInterceptor and StreamAPIKeyInterceptor guard the gRPC server;
// Middleware guards the REST API and the dashboard websocket. All three read
// the same configured header, compare keys in constant time and pass every
// call through when mode != "apikey" or the key is empty, which is the
// local development setup.
//
// Middleware takes path prefixes that skip the check; the server exempts
// /api/v1/health and /metrics so probes and scrapers need no key.
package auth

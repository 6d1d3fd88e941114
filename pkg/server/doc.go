// Package server exposes routing and the credit ledger as a small JSON
// API.
//
// Endpoints:
//
//	POST /v1/route                        analyze (or accept) a task profile and pick a model
//	POST /v1/analyze                      task profile only
//	POST /v1/ledger/entries               append an entry
//	POST /v1/ledger/usage                 burn the catalog cost of a call
//	GET  /v1/ledger/entries               list entries (entity, type, limit, offset)
//	GET  /v1/ledger/balances/{type}/{id}  balance of one entity (optional currency)
//	GET  /v1/ledger/verify                verify a sequence range (from, to)
//	GET  /healthz, /readyz, /version      when a health checker is configured
//	GET  /metrics                         when a metrics handler is configured
//
// Errors use a single shape, {"error": {"code", "message", "field"}}.
// Invalid entries are 400, insufficient balance is 409 and a route with no
// candidate models is 422.
//
// When an Authenticator is configured every /v1 route needs an API key with
// the route's scope: "route" for analyze and route, "ledger:read" for the
// ledger reads and "ledger:write" for appends. Missing or unknown keys are
// 401 and a key without the scope is 403. Health and metrics stay open.
// A Limiter throttles /v1 routes per key name, or per client address when
// unauthenticated, answering 429 with Retry-After, and 503 when the
// in-flight cap is reached.
//
// Every request gets an X-Request-ID, taken from the client when present,
// which is attached to the request context so log lines carry it.
package server

// Package health serves liveness, readiness and version endpoints.
//
// A Checker holds named component checks. Liveness never runs them;
// readiness runs them concurrently, each under its own timeout, and answers
// 503 when any fails:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("ledger", health.LedgerCheck(ledger))
//	checker.RegisterCheck("audit", health.AuditCheck(scheduler.LastReport))
//	health.Register(mux, checker, version, commit, buildTime)
//
// Endpoints:
//
//   - GET /healthz: liveness
//   - GET /readyz: readiness with per-check results
//   - GET /version: build information
package health

// Package audit runs periodic chain verification.
//
// The scheduler re-verifies the most recent window of entries, or the whole
// chain, on a cron schedule and reports violations through a callback and
// the error log. Violations are never repaired automatically.
package audit

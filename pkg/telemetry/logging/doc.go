// Package logging builds the process logger on log/slog.
//
// New returns a Logger whose handler writes JSON or text, adds request
// scoped fields stored in the context (request id, entity, provider, model,
// task type) and, when enabled, redacts credentials and email addresses
// from attribute values before they are written:
//
//	l, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	l.SetDefault()
//	log := l.Component("ledger.chain")
//	log.InfoContext(ctx, "entry appended", "sequence", 42)
//
// The level is held in a slog.LevelVar, so SetLevel affects every logger
// derived from the same Logger. The serve command uses this to apply
// configuration reloads.
//
// Values under keys such as api_key, secret, password or *_token are
// masked to a four character hint. Keys ending in _tokens are counts and
// are left alone.
package logging

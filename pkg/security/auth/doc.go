// Package auth authenticates API callers by key.
//
// Keys come from the server.auth section of the configuration, either inline
// or through an environment variable named by key_env. Each key carries a set
// of scopes; a key without scopes may call every endpoint.
//
//	authn, err := auth.NewAuthenticator(cfg.Server.Auth)
//	mux.Handle("POST /v1/ledger/entries",
//	    authn.Require(auth.ScopeLedgerWrite, reject, appendHandler))
//
// By default keys are read from "Authorization: Bearer <key>" and then from
// the X-API-Key header.
package auth

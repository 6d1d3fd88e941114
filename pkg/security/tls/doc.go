// Package tls terminates HTTPS for the API server.
//
// NewServerConfig turns the server.tls configuration section into a
// crypto/tls.Config whose certificate comes from a CertificateReloader.
// Renewed certificate files are noticed on the first handshake after the
// reload interval elapses, so rotation needs no restart. A renewed pair that
// fails to load or validate is logged and the previous pair stays in use.
package tls

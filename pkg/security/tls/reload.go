package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// CertificateReloader serves a certificate pair from disk and picks up
// renewed files without a restart. Files are checked for changes at most
// once per interval, during a handshake; no goroutine is started.
type CertificateReloader struct {
	certFile string
	keyFile  string
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	cert      *tls.Certificate
	certTime  time.Time
	keyTime   time.Time
	lastCheck time.Time
}

// NewCertificateReloader loads the pair and returns a reloader for it. A
// non-positive interval disables reloading.
func NewCertificateReloader(certFile, keyFile string, interval time.Duration, logger *slog.Logger) (*CertificateReloader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &CertificateReloader{
		certFile: certFile,
		keyFile:  keyFile,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	r.lastCheck = r.now()
	return r, nil
}

// GetCertificate satisfies tls.Config.GetCertificate. When a reload fails
// the previous certificate keeps being served.
func (r *CertificateReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.Lock()
	due := r.interval > 0 && r.now().Sub(r.lastCheck) >= r.interval
	if due {
		r.lastCheck = r.now()
	}
	r.mu.Unlock()

	if due && r.changed() {
		if err := r.reload(); err != nil {
			r.logger.Error("failed to reload certificate, keeping previous",
				"cert_file", r.certFile, "key_file", r.keyFile, "error", err)
		} else {
			r.logger.Info("certificate reloaded", "cert_file", r.certFile)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cert, nil
}

// Certificate returns the certificate currently served.
func (r *CertificateReloader) Certificate() *tls.Certificate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cert
}

func (r *CertificateReloader) changed() bool {
	certInfo, err := os.Stat(r.certFile)
	if err != nil {
		return false
	}
	keyInfo, err := os.Stat(r.keyFile)
	if err != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return !certInfo.ModTime().Equal(r.certTime) || !keyInfo.ModTime().Equal(r.keyTime)
}

func (r *CertificateReloader) reload() error {
	certInfo, err := os.Stat(r.certFile)
	if err != nil {
		return fmt.Errorf("certificate file: %w", err)
	}
	keyInfo, err := os.Stat(r.keyFile)
	if err != nil {
		return fmt.Errorf("key file: %w", err)
	}

	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}
	leaf, err := ValidateCertificate(&cert, r.now())
	if err != nil {
		return err
	}
	cert.Leaf = leaf

	r.mu.Lock()
	r.cert = &cert
	r.certTime = certInfo.ModTime()
	r.keyTime = keyInfo.ModTime()
	r.mu.Unlock()

	r.logCertificate(leaf)
	return nil
}

func (r *CertificateReloader) logCertificate(leaf *x509.Certificate) {
	days, soon := ExpiresSoon(leaf, r.now())
	attrs := []any{
		"subject", leaf.Subject.CommonName,
		"issuer", leaf.Issuer.CommonName,
		"expires_in_days", days,
		"expires_at", leaf.NotAfter.Format(time.RFC3339),
	}
	if soon {
		r.logger.Warn("certificate expiring soon", attrs...)
		return
	}
	r.logger.Info("certificate loaded", attrs...)
}

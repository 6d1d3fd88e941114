package chain

import (
	"log/slog"
	"time"

	"blackroad-os/carpool/pkg/config"
	"blackroad-os/carpool/pkg/ledger"
)

// Recorder receives ledger events for metrics. All methods must be safe
// for concurrent use.
type Recorder interface {
	RecordAppend(entryType, currency string, amount float64, duration time.Duration)
	RecordAppendRejected(reason string)
	RecordIdempotentReplay()
	RecordChainTail(sequence int64)
	RecordVerification(valid bool, checked int)
}

type nopRecorder struct{}

func (nopRecorder) RecordAppend(string, string, float64, time.Duration) {}
func (nopRecorder) RecordAppendRejected(string)                         {}
func (nopRecorder) RecordIdempotentReplay()                             {}
func (nopRecorder) RecordChainTail(int64)                               {}
func (nopRecorder) RecordVerification(bool, int)                        {}

type options struct {
	scheme   ledger.HashScheme
	scale    int32
	currency string
	recorder Recorder
	logger   *slog.Logger
	clock    func() time.Time
}

func defaultOptions() options {
	return options{
		scheme:   ledger.SchemeSHA256,
		scale:    config.DefaultLedgerAmountScale,
		currency: config.DefaultLedgerCurrency,
		recorder: nopRecorder{},
		logger:   slog.Default().With("component", "ledger.chain"),
		clock:    time.Now,
	}
}

// Option configures a Writer, Verifier or Ledger.
type Option func(*options)

// WithHashScheme selects the digest for new entries. Verification always
// uses the scheme recorded in each stored hash.
func WithHashScheme(s ledger.HashScheme) Option {
	return func(o *options) { o.scheme = s }
}

// WithAmountScale sets the number of decimal places in the canonical
// amount. It is part of the chain format and must not change once entries
// exist.
func WithAmountScale(scale int32) Option {
	return func(o *options) { o.scale = scale }
}

// WithDefaultCurrency sets the currency used when a request names none.
func WithDefaultCurrency(c string) Option {
	return func(o *options) { o.currency = c }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the time source for new entries.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// OptionsFromConfig translates ledger configuration into options.
func OptionsFromConfig(cfg *config.LedgerConfig) ([]Option, error) {
	scheme, err := ledger.ParseHashScheme(cfg.HashScheme)
	if err != nil {
		return nil, err
	}
	return []Option{
		WithHashScheme(scheme),
		WithAmountScale(cfg.AmountScale),
		WithDefaultCurrency(cfg.DefaultCurrency),
	}, nil
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

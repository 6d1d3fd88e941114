package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"blackroad-os/carpool/pkg/config"
	"blackroad-os/carpool/pkg/ledger"
	"blackroad-os/carpool/pkg/ledger/chain"
	"blackroad-os/carpool/pkg/ledger/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func seededLedger(t *testing.T, n int) *chain.Ledger {
	t.Helper()
	store := storage.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	l := chain.New(store)
	to := ledger.EntityRef{Type: ledger.EntityUser, ID: "u1"}
	for i := 0; i < n; i++ {
		_, err := l.Append(context.Background(), chain.AppendRequest{
			Type: ledger.EntryCreditGrant, To: &to, Amount: decimal.NewFromInt(1),
		})
		require.NoError(t, err)
	}
	return l
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{name: "every fifteen minutes", schedule: "*/15 * * * *", wantRunning: true},
		{name: "hourly", schedule: "0 * * * *", wantRunning: true},
		{name: "empty schedule", schedule: ""},
		{name: "invalid schedule", schedule: "invalid cron", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(seededLedger(t, 1), config.AuditConfig{Enabled: true, Schedule: tt.schedule}, nil)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}

			if tt.wantRunning {
				next := s.NextRun()
				if next == nil {
					t.Fatal("NextRun() returned nil for running scheduler")
				}
				if !next.After(time.Now()) {
					t.Errorf("NextRun() = %v, want a future time", next)
				}
			} else if s.NextRun() != nil {
				t.Error("NextRun() should be nil when idle")
			}

			s.Stop()
			if s.IsRunning() {
				t.Error("scheduler still running after Stop()")
			}
		})
	}
}

func TestScheduler_StartTwice(t *testing.T) {
	s := NewScheduler(seededLedger(t, 1), config.AuditConfig{Schedule: "@hourly"}, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Error(t, s.Start(context.Background()))
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := NewScheduler(seededLedger(t, 1), config.AuditConfig{Schedule: "@hourly"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	cancel()
	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 10*time.Millisecond)
	s.Stop()
}

func TestScheduler_RunOnceWindow(t *testing.T) {
	l := seededLedger(t, 10)

	tests := []struct {
		name     string
		window   int64
		wantFrom int64
		wantN    int
	}{
		{name: "full chain", window: 0, wantFrom: 1, wantN: 10},
		{name: "last three", window: 3, wantFrom: 8, wantN: 3},
		{name: "window larger than chain", window: 50, wantFrom: 1, wantN: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(l, config.AuditConfig{Window: tt.window}, nil)
			report, err := s.RunOnce(context.Background())
			require.NoError(t, err)
			assert.True(t, report.Valid)
			assert.Equal(t, tt.wantFrom, report.From)
			assert.Equal(t, int64(10), report.To)
			assert.Equal(t, tt.wantN, report.Checked)
			assert.Same(t, report, s.LastReport())
		})
	}
}

func TestScheduler_RunOnceEmptyChain(t *testing.T) {
	s := NewScheduler(seededLedger(t, 0), config.AuditConfig{}, nil)
	assert.Nil(t, s.LastReport())

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Zero(t, report.Checked)
}

type failingVerifier struct {
	tailErr error
	report  *chain.Report
}

func (f *failingVerifier) Tail(context.Context) (int64, string, error) {
	return 5, "h", f.tailErr
}

func (f *failingVerifier) VerifyRange(_ context.Context, from, to int64) (*chain.Report, error) {
	r := *f.report
	r.From, r.To = from, to
	return &r, nil
}

func TestScheduler_ReportsViolation(t *testing.T) {
	bad := &chain.Report{
		Valid:        false,
		Checked:      2,
		FirstInvalid: 3,
		Failure:      &ledger.ChainIntegrityError{Sequence: 3, Reason: "hash mismatch"},
	}

	var mu sync.Mutex
	var seen []*chain.Report
	s := NewScheduler(&failingVerifier{report: bad}, config.AuditConfig{}, func(r *chain.Report) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, r)
	})

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Valid)
	require.Len(t, seen, 1)
	assert.Equal(t, int64(3), seen[0].FirstInvalid)
	assert.ErrorIs(t, seen[0].Err(), ledger.ErrChainIntegrity)
}

func TestScheduler_TailError(t *testing.T) {
	s := NewScheduler(&failingVerifier{tailErr: errors.New("db gone")}, config.AuditConfig{}, nil)
	_, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db gone")
}

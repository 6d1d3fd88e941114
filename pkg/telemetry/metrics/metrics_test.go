package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"blackroad-os/carpool/pkg/config"
	"blackroad-os/carpool/pkg/ledger"
	"blackroad-os/carpool/pkg/ledger/chain"
	"blackroad-os/carpool/pkg/ledger/storage"
	"blackroad-os/carpool/pkg/routing"
)

var (
	_ routing.Recorder = (*Collector)(nil)
	_ chain.Recorder   = (*Collector)(nil)
)

func testConfig() config.MetricsConfig {
	return config.MetricsConfig{
		Enabled:      true,
		Namespace:    "test",
		Subsystem:    "metrics",
		ScoreBuckets: []float64{0, 10, 20},
	}
}

func TestCollector_NewCollectorDefaults(t *testing.T) {
	c := NewCollector(config.MetricsConfig{Enabled: true})
	c.RecordChainTail(3)

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "carpool_core_ledger_chain_tail" {
			found = true
		}
	}
	if !found {
		t.Error("default namespace and subsystem not applied")
	}
}

func TestCollector_PrivateRegistries(t *testing.T) {
	a := NewCollector(testConfig())
	b := NewCollector(testConfig())
	a.RecordIdempotentReplay()

	if got := testutil.ToFloat64(b.ledger.replays); got != 0 {
		t.Errorf("collectors share state: %v", got)
	}
}

func TestCollector_RecordRoutingDecision(t *testing.T) {
	c := NewCollector(testConfig())

	c.RecordRoutingDecision("openai", "gpt-4o", "code", 21, false)
	c.RecordRoutingDecision("openai", "gpt-4o", "code", 19, true)
	c.RecordRoutingDecision("google", "gemini-2.0-flash", "multimodal", -3, false)

	if got := testutil.ToFloat64(c.routing.decisions.WithLabelValues("openai", "gpt-4o", "code")); got != 2 {
		t.Errorf("decisions{openai,gpt-4o,code} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.routing.relaxed); got != 1 {
		t.Errorf("relaxed = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.routing.score); got != 1 {
		t.Errorf("score histogram series = %d, want 1", got)
	}
}

func TestCollector_RecordRoutingFailure(t *testing.T) {
	c := NewCollector(testConfig())
	c.RecordRoutingFailure("no_candidates")
	c.RecordRoutingFailure("no_candidates")
	c.RecordRoutingFailure("invalid_task")

	if got := testutil.ToFloat64(c.routing.failures.WithLabelValues("no_candidates")); got != 2 {
		t.Errorf("failures{no_candidates} = %v, want 2", got)
	}
}

func TestCollector_LedgerEvents(t *testing.T) {
	c := NewCollector(testConfig())

	c.RecordAppend("credit_grant", "ROADCOIN", 100, 2*time.Millisecond)
	c.RecordAppend("credit_burn", "ROADCOIN", 40, time.Millisecond)
	c.RecordAppend("verification", "ROADCOIN", 0, time.Millisecond)
	c.RecordAppendRejected("insufficient_balance")
	c.RecordIdempotentReplay()
	c.RecordChainTail(3)
	c.RecordVerification(true, 3)
	c.RecordVerification(false, 2)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"grant appends", testutil.ToFloat64(c.ledger.appends.WithLabelValues("credit_grant")), 1},
		{"grant volume", testutil.ToFloat64(c.ledger.volume.WithLabelValues("credit_grant", "ROADCOIN")), 100},
		{"burn volume", testutil.ToFloat64(c.ledger.volume.WithLabelValues("credit_burn", "ROADCOIN")), 40},
		{"rejections", testutil.ToFloat64(c.ledger.rejections.WithLabelValues("insufficient_balance")), 1},
		{"replays", testutil.ToFloat64(c.ledger.replays), 1},
		{"tail", testutil.ToFloat64(c.ledger.tail), 3},
		{"valid runs", testutil.ToFloat64(c.ledger.verifications.WithLabelValues("true")), 1},
		{"invalid runs", testutil.ToFloat64(c.ledger.verifications.WithLabelValues("false")), 1},
		{"verified entries", testutil.ToFloat64(c.ledger.verified), 5},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	// Zero amounts count as appends but add no volume series.
	if got := testutil.ToFloat64(c.ledger.appends.WithLabelValues("verification")); got != 1 {
		t.Errorf("verification appends = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.ledger.volume); got != 2 {
		t.Errorf("volume series = %d, want 2", got)
	}
}

func TestCollector_HTTPEvents(t *testing.T) {
	c := NewCollector(testConfig())
	c.RecordRejection("rate_limited")
	c.RecordRejection("rate_limited")
	c.RecordRejection("unauthorized")
	c.AddInFlight(2)
	c.AddInFlight(-1)

	if got := testutil.ToFloat64(c.http.rejections.WithLabelValues("rate_limited")); got != 2 {
		t.Errorf("rate_limited rejections = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.http.rejections.WithLabelValues("unauthorized")); got != 1 {
		t.Errorf("unauthorized rejections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.http.inFlight); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	c := NewCollector(cfg)

	c.RecordRoutingDecision("openai", "gpt-4o", "chat", 10, false)
	c.RecordAppend("credit_grant", "ROADCOIN", 5, time.Millisecond)
	c.RecordChainTail(9)

	if got := testutil.CollectAndCount(c.routing.decisions); got != 0 {
		t.Errorf("disabled collector recorded %d decision series", got)
	}
	if got := testutil.ToFloat64(c.ledger.tail); got != 0 {
		t.Errorf("disabled collector set tail to %v", got)
	}
}

func TestCollector_CardinalityLimit(t *testing.T) {
	c := NewCollector(testConfig())
	c.cardinalityLimiter = NewCardinalityLimiter(1)

	c.RecordRoutingDecision("custom", "model-a", "chat", 1, false)
	c.RecordRoutingDecision("custom", "model-b", "chat", 1, false)

	if got := testutil.ToFloat64(c.routing.decisions.WithLabelValues("custom", otherLabel, "chat")); got != 1 {
		t.Errorf("overflow label set should be reported as other, got %v", got)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)
	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("first two label sets should be allowed")
	}
	if cl.Allow("c") {
		t.Error("third label set should be rejected")
	}
	if !cl.Allow("a") {
		t.Error("known label set should stay allowed")
	}
	if cl.Count() != 2 {
		t.Errorf("Count() = %d, want 2", cl.Count())
	}
}

func TestCollector_WiredIntoLedgerAndRouter(t *testing.T) {
	c := NewCollector(testConfig())
	ctx := context.Background()

	store := storage.NewMemoryStore()
	defer store.Close()
	l := chain.New(store, chain.WithRecorder(c))

	user := ledger.EntityRef{Type: ledger.EntityUser, ID: "u1"}
	if _, err := l.Append(ctx, chain.AppendRequest{Type: ledger.EntryCreditGrant, To: &user, Amount: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := l.Append(ctx, chain.AppendRequest{Type: ledger.EntryCreditBurn, From: &user, Amount: decimal.NewFromInt(11)}); err == nil {
		t.Fatal("overdraw should fail")
	}

	if got := testutil.ToFloat64(c.ledger.appends.WithLabelValues("credit_grant")); got != 1 {
		t.Errorf("grant appends = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ledger.rejections.WithLabelValues("insufficient_balance")); got != 1 {
		t.Errorf("insufficient rejections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ledger.tail); got != 1 {
		t.Errorf("tail = %v, want 1", got)
	}

	router, err := routing.NewRouter(routing.DefaultCatalog(), routing.WithRecorder(c))
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	task := &routing.TaskProfile{Type: routing.TaskChat, Complexity: routing.ComplexitySimple, EstimatedTokens: 20}
	if _, err := router.Route(ctx, task, []routing.Provider{routing.ProviderOpenAI}, nil); err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if _, err := router.Route(ctx, task, []routing.Provider{routing.ProviderLocal}, nil); err == nil {
		t.Fatal("route without catalog models should fail")
	}

	if got := testutil.CollectAndCount(c.routing.decisions); got != 1 {
		t.Errorf("decision series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(c.routing.failures.WithLabelValues("no_candidates")); got != 1 {
		t.Errorf("no_candidates failures = %v, want 1", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(testConfig())
	c.RecordAppend("credit_grant", "ROADCOIN", 1, time.Millisecond)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `test_metrics_ledger_appends_total{type="credit_grant"} 1`) {
		t.Errorf("exposition missing append counter:\n%s", body)
	}
}

func BenchmarkCollector_RecordAppend(b *testing.B) {
	c := NewCollector(testConfig())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.RecordAppend("credit_burn", "ROADCOIN", 1.5, time.Millisecond)
	}
}

func BenchmarkCollector_RecordRoutingDecision_Parallel(b *testing.B) {
	c := NewCollector(testConfig())
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.RecordRoutingDecision("anthropic", "claude-3-haiku", "chat", 12.5, false)
		}
	})
}

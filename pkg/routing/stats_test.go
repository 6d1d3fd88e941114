package routing

import (
	"sync"
	"testing"
)

func TestAtomicRoutingStats(t *testing.T) {
	s := NewAtomicRoutingStats()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncrementTotal()
			s.IncrementProvider(ProviderOpenAI)
			s.IncrementTaskType(TaskCode)
		}()
	}
	wg.Wait()
	s.IncrementRelaxed()
	s.IncrementPreferenceMatch()
	s.IncrementErrors()

	snap := s.Snapshot()
	if snap.TotalRequests != 50 || snap.RequestsPerProvider["openai"] != 50 || snap.RequestsPerTaskType["code"] != 50 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.RelaxedCount != 1 || snap.PreferenceMatchCount != 1 || snap.Errors != 1 {
		t.Errorf("snapshot = %+v", snap)
	}

	before := snap.LastResetTime
	s.Reset()
	snap = s.Snapshot()
	if snap.TotalRequests != 0 || len(snap.RequestsPerProvider) != 0 || snap.Errors != 0 {
		t.Errorf("after Reset snapshot = %+v", snap)
	}
	if snap.LastResetTime.Before(before) {
		t.Error("LastResetTime should advance on Reset")
	}
}

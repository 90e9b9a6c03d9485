package sqlite

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/csvclean/internal/quota"
	"github.com/JonMunkholm/csvclean/internal/store"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	march = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	april = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
)

// ----------------------------------------------------------------------------
// Counter Tests
// ----------------------------------------------------------------------------

func TestTryIncrement_EnforcesLimit(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		count, ok, err := s.TryIncrement(ctx, "anon:a", march, 3)
		if err != nil {
			t.Fatalf("TryIncrement failed: %v", err)
		}
		if !ok || count != want {
			t.Fatalf("TryIncrement = %d, %v; want %d, true", count, ok, want)
		}
	}

	count, ok, err := s.TryIncrement(ctx, "anon:a", march, 3)
	if err != nil {
		t.Fatalf("TryIncrement failed: %v", err)
	}
	if ok || count != 3 {
		t.Errorf("TryIncrement over limit = %d, %v; want 3, false", count, ok)
	}
}

func TestTryIncrement_ResetsOnNewPeriod(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	s.TryIncrement(ctx, "id", march, 1)
	if _, ok, _ := s.TryIncrement(ctx, "id", march, 1); ok {
		t.Fatal("second March increment succeeded, want rejection")
	}

	count, ok, err := s.TryIncrement(ctx, "id", april, 1)
	if err != nil || !ok || count != 1 {
		t.Errorf("April increment = %d, %v, %v; want 1, true, nil", count, ok, err)
	}
	if used, _ := s.Usage(ctx, "id", march); used != 0 {
		t.Errorf("Usage(march) = %d, want 0 after rollover", used)
	}
}

func TestTryIncrement_UnlimitedAndZero(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if _, ok, err := s.TryIncrement(ctx, "big", march, quota.Unlimited); err != nil || !ok {
			t.Fatalf("unlimited increment %d = %v, %v", i, ok, err)
		}
	}
	if _, ok, _ := s.TryIncrement(ctx, "none", march, 0); ok {
		t.Error("zero-limit increment succeeded")
	}
	if used, _ := s.Usage(ctx, "none", march); used != 0 {
		t.Errorf("zero-limit identity has usage %d", used)
	}
}

func TestTryIncrement_Concurrent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, admitted, err := s.TryIncrement(ctx, "shared", march, 5)
			if err != nil {
				t.Errorf("TryIncrement failed: %v", err)
				return
			}
			if admitted {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := ok.Load(); got != 5 {
		t.Errorf("admitted = %d, want 5", got)
	}
}

func TestDecrementAndPurge(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	s.TryIncrement(ctx, "a", march, 5)
	s.TryIncrement(ctx, "a", march, 5)
	s.TryIncrement(ctx, "b", april, 5)

	if err := s.Decrement(ctx, "a", march); err != nil {
		t.Fatalf("Decrement failed: %v", err)
	}
	if err := s.Decrement(ctx, "a", april); err != nil {
		t.Fatalf("Decrement of other period failed: %v", err)
	}
	if used, _ := s.Usage(ctx, "a", march); used != 1 {
		t.Errorf("Usage(a) = %d, want 1", used)
	}

	purged, err := s.Purge(ctx, april)
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
	if used, _ := s.Usage(ctx, "b", april); used != 1 {
		t.Errorf("Usage(b) = %d, want 1", used)
	}
}

// ----------------------------------------------------------------------------
// Job Tests
// ----------------------------------------------------------------------------

func TestRecordJob_RoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	older := store.CleaningJob{
		ID: "job-1", Identity: "acct:1", Tier: quota.TierPro, FileName: "a.csv",
		FileSize: 120, OriginalRows: 10, FinalRows: 7, Columns: 4,
		ScoreBefore: 72.5, ScoreAfter: 100, Operations: []string{"Removed 2 duplicate rows"},
		ProcessingMS: 15, CreatedAt: base,
	}
	newer := older
	newer.ID = "job-2"
	newer.LLMError = "interpretation failed"
	newer.Operations = []string{}
	newer.CreatedAt = base.Add(time.Minute)

	for _, job := range []store.CleaningJob{older, newer} {
		if err := s.RecordJob(ctx, job); err != nil {
			t.Fatalf("RecordJob(%s) failed: %v", job.ID, err)
		}
	}
	if err := s.RecordJob(ctx, store.CleaningJob{ID: "other", Identity: "acct:2", Tier: quota.TierFree, CreatedAt: base}); err != nil {
		t.Fatalf("RecordJob(other) failed: %v", err)
	}

	jobs, err := s.RecentJobs(ctx, "acct:1", 10)
	if err != nil {
		t.Fatalf("RecentJobs failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2", len(jobs))
	}
	if jobs[0].ID != "job-2" || jobs[1].ID != "job-1" {
		t.Errorf("order = %s, %s; want job-2, job-1", jobs[0].ID, jobs[1].ID)
	}

	got := jobs[1]
	if got.Tier != quota.TierPro || got.QualityImprovement() != 27.5 || !got.CreatedAt.Equal(base) {
		t.Errorf("job-1 = %+v", got)
	}
	if len(got.Operations) != 1 || got.Operations[0] != "Removed 2 duplicate rows" {
		t.Errorf("operations = %v", got.Operations)
	}
	if jobs[0].LLMError != "interpretation failed" {
		t.Errorf("llm error = %q", jobs[0].LLMError)
	}

	limited, _ := s.RecentJobs(ctx, "acct:1", 1)
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d jobs", len(limited))
	}
}

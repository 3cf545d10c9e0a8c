package payroll

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestReportCacheVersioning(t *testing.T) {
	cache, _ := newRedisCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, reportCacheKey(reportDay, "")...)
	if err != nil {
		t.Fatalf("build key: %v", err)
	}
	if key != "payroll:report:2025-01-10:-:v1" {
		t.Fatalf("unexpected key %q", key)
	}
	if err := cache.Bump(ctx); err != nil {
		t.Fatalf("bump: %v", err)
	}
	key, err = cache.BuildKey(ctx, reportCacheKey(reportDay, "P1")...)
	if err != nil {
		t.Fatalf("build key: %v", err)
	}
	if key != "payroll:report:2025-01-10:P1:v2" {
		t.Fatalf("unexpected key after bump %q", key)
	}
}

func TestReportCacheFetchStoresReport(t *testing.T) {
	cache, _ := newRedisCache(t)
	ctx := context.Background()
	builds := 0
	build := func(context.Context) (DailyReport, error) {
		builds++
		report := Aggregate(reportDay, "", []PayrollEntry{costedEntry("E1", "P1", 8, "120.00")})
		return report, nil
	}

	first, err := cache.FetchReport(ctx, "k", build)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	second, err := cache.FetchReport(ctx, "k", build)
	if err != nil {
		t.Fatalf("fetch cached: %v", err)
	}
	if builds != 1 {
		t.Fatalf("expected one build, got %d", builds)
	}
	if !second.TotalCost.Equal(decimal.RequireFromString("120")) || second.ReportID != first.ReportID {
		t.Fatalf("cached report mismatch: %+v", second)
	}
}

func TestReportCacheNilClientPassesThrough(t *testing.T) {
	cache := NewReportCache(nil, 0)
	ctx := context.Background()
	builds := 0
	build := func(context.Context) (DailyReport, error) {
		builds++
		return Aggregate(reportDay, "", nil), nil
	}
	for i := 0; i < 2; i++ {
		if _, err := cache.FetchReport(ctx, "k", build); err != nil {
			t.Fatalf("fetch: %v", err)
		}
	}
	if builds != 2 {
		t.Fatalf("expected every fetch to build, got %d", builds)
	}
	if err := cache.Bump(ctx); err != nil {
		t.Fatalf("bump on disabled cache: %v", err)
	}
}

func TestReportCacheBuildErrorNotCached(t *testing.T) {
	cache, mr := newRedisCache(t)
	boom := errors.New("boom")
	_, err := cache.FetchReport(context.Background(), "k", func(context.Context) (DailyReport, error) {
		return DailyReport{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected build error, got %v", err)
	}
	if mr.Exists("k") {
		t.Fatalf("failed build must not be cached")
	}
}

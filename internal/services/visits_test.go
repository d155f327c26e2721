package services

import (
	"context"
	"testing"
	"time"

	"civilsite-backend-go/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(t *testing.T, mode string, day time.Time) *VisitTracker {
	t.Helper()
	tracker := NewVisitTracker(testutil.TestDB(t), mode, "test-salt", testutil.TxTimeout)
	tracker.now = func() time.Time { return day }
	return tracker
}

func TestStatsCreatesRowLazily(t *testing.T) {
	tracker := newTracker(t, VisitModeIPDay, time.Now())

	stats, err := tracker.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalVisits)
	assert.Zero(t, stats.UniqueVisitors)
}

func TestRecordCountsEveryVisit(t *testing.T) {
	tracker := newTracker(t, VisitModeIPDay, time.Now())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := tracker.Record(ctx, "10.0.0.1")
		require.NoError(t, err)
	}
	stats, err := tracker.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.TotalVisits)
}

func TestIPDayModeCountsOnePerAddressPerDay(t *testing.T) {
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tracker := newTracker(t, VisitModeIPDay, day)
	ctx := context.Background()

	stats, err := tracker.Record(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.UniqueVisitors)

	stats, err = tracker.Record(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.UniqueVisitors)

	stats, err = tracker.Record(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.UniqueVisitors)

	tracker.now = func() time.Time { return day.AddDate(0, 0, 1) }
	stats, err = tracker.Record(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.UniqueVisitors)
	assert.Equal(t, int64(4), stats.TotalVisits)
}

func TestLegacyModeCountsEveryThirdVisit(t *testing.T) {
	tracker := newTracker(t, VisitModeLegacy, time.Now())
	ctx := context.Background()

	var uniques []int64
	for i := 0; i < 9; i++ {
		stats, err := tracker.Record(ctx, "10.0.0.1")
		require.NoError(t, err)
		uniques = append(uniques, stats.UniqueVisitors)
	}
	assert.Equal(t, []int64{0, 0, 1, 1, 1, 2, 2, 2, 3}, uniques)
}

func TestUnknownModeFallsBackToIPDay(t *testing.T) {
	tracker := NewVisitTracker(nil, "sometimes", "", time.Second)
	assert.Equal(t, VisitModeIPDay, tracker.Mode)
}

func TestPruneDaysDropsOldRecords(t *testing.T) {
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tracker := newTracker(t, VisitModeIPDay, day.AddDate(0, 0, -40))
	ctx := context.Background()

	_, err := tracker.Record(ctx, "10.0.0.1")
	require.NoError(t, err)
	tracker.now = func() time.Time { return day }
	_, err = tracker.Record(ctx, "10.0.0.1")
	require.NoError(t, err)

	removed, err := tracker.PruneDays(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// Counters are untouched by pruning.
	stats, err := tracker.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.UniqueVisitors)
}

func TestShouldTrack(t *testing.T) {
	assert.True(t, ShouldTrack("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"))
	assert.False(t, ShouldTrack("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"))
	assert.True(t, ShouldTrack(""))
	assert.True(t, ShouldTrack("curl/8.4.0"))
}

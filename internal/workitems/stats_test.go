package workitems

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func money(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestStatsEmptyCollection(t *testing.T) {
	stats := ComputeStats(nil, time.Now(), time.UTC)

	require.True(t, stats.TotalRevenue.IsZero())
	require.True(t, stats.PendingRevenue.IsZero())
	require.Zero(t, stats.WinRate)
	require.True(t, stats.AverageQuoteValue.IsZero())
	require.Zero(t, stats.ScheduledToday)
	require.Empty(t, stats.Buckets)
}

func TestRevenueSplitsPaidAndPending(t *testing.T) {
	paidAt := ts(t, "2026-02-01T10:00:00Z")
	completedAt := ts(t, "2026-02-05T10:00:00Z")

	items := []WorkItem{
		{Status: StatusSigned, Total: money("100"), PaidAt: paidAt, CompletedAt: completedAt},
		{Status: StatusSigned, Total: money("50"), CompletedAt: completedAt},
	}

	require.True(t, TotalRevenue(items).Equal(money("100")))
	require.True(t, PendingRevenue(items).Equal(money("50")))
}

func TestRevenueExcludesArchived(t *testing.T) {
	paidAt := ts(t, "2026-02-01T10:00:00Z")

	items := []WorkItem{
		{Status: StatusSigned, Total: money("100"), PaidAt: paidAt},
		{Status: StatusArchived, Total: money("999"), PaidAt: paidAt},
	}

	require.True(t, TotalRevenue(items).Equal(money("100")))
}

func TestWinRate(t *testing.T) {
	sent := func(n int) []WorkItem {
		items := make([]WorkItem, n)
		for i := range items {
			items[i] = WorkItem{Status: StatusSent}
		}
		return items
	}
	signed := func(n int) []WorkItem {
		items := make([]WorkItem, n)
		for i := range items {
			items[i] = WorkItem{Status: StatusSigned}
		}
		return items
	}

	require.Equal(t, 40, WinRate(append(sent(6), signed(4)...)))
	require.Equal(t, 0, WinRate(nil))
	require.Equal(t, 0, WinRate([]WorkItem{{Status: StatusLead}, {Status: StatusDraft}}))
	require.Equal(t, 100, WinRate(signed(3)))
	require.Equal(t, 33, WinRate(append(sent(2), signed(1)...)))
}

func TestAverageQuoteValue(t *testing.T) {
	items := []WorkItem{
		{Status: StatusSent, Total: money("100")},
		{Status: StatusDraft, Total: money("50")},
		{Status: StatusArchived, Total: money("1000")},
	}

	require.True(t, AverageQuoteValue(items).Equal(money("75")))
	require.True(t, AverageQuoteValue(nil).IsZero())
}

func TestScheduledTodayCount(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// 23:30 UTC on March 1st is already March 2nd in Berlin.
	now, err := time.Parse(time.RFC3339, "2026-03-01T23:30:00Z")
	require.NoError(t, err)

	sameDayUTC := ts(t, "2026-03-02T08:00:00+01:00")
	lateUTC := ts(t, "2026-03-02T22:00:00Z")
	previousDay := ts(t, "2026-03-01T10:00:00Z")

	items := []WorkItem{
		{Status: StatusSigned, ScheduledAt: sameDayUTC},
		{Status: StatusSigned, ScheduledAt: lateUTC},
		{Status: StatusSigned, ScheduledAt: previousDay},
		{Status: StatusArchived, ScheduledAt: sameDayUTC},
		{Status: StatusSigned},
	}

	require.Equal(t, 2, ScheduledTodayCount(items, now, loc))
	require.Equal(t, 1, ScheduledTodayCount(items, now, time.UTC))
}

func TestCountByBucket(t *testing.T) {
	scheduled := ts(t, "2026-03-01T09:00:00Z")
	completed := ts(t, "2026-03-02T17:00:00Z")
	paid := ts(t, "2026-03-10T12:00:00Z")

	items := []WorkItem{
		{Status: StatusLead},
		{Status: StatusLead},
		{Status: StatusSent},
		{Status: StatusSigned},
		{Status: StatusSigned, ScheduledAt: scheduled},
		{Status: StatusSigned, ScheduledAt: scheduled, CompletedAt: completed},
		{Status: StatusSigned, ScheduledAt: scheduled, CompletedAt: completed, PaidAt: paid},
		{Status: StatusArchived},
	}

	counts := CountByBucket(items)
	require.Equal(t, 2, counts[BucketLead])
	require.Equal(t, 1, counts[BucketQuote])
	require.Equal(t, 1, counts[BucketToBeScheduled])
	require.Equal(t, 1, counts[BucketScheduled])
	require.Equal(t, 1, counts[BucketInvoiceable])
	require.Equal(t, 1, counts[BucketPaid])
	require.Equal(t, 1, counts[BucketArchived])

	var total int
	for _, n := range counts {
		total += n
	}
	require.Equal(t, len(items), total)
}

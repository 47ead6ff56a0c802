package workitems

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Stats holds the derived aggregate views over a work-item collection.
// All fields are zero-valued for an empty collection.
type Stats struct {
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	PendingRevenue    decimal.Decimal `json:"pending_revenue"`
	WinRate           int             `json:"win_rate"`
	AverageQuoteValue decimal.Decimal `json:"average_quote_value"`
	ScheduledToday    int             `json:"scheduled_today"`
	Buckets           map[Bucket]int  `json:"buckets"`
}

// ComputeStats derives every aggregate in one pass. Pure function of the
// input snapshot; safe to call concurrently.
func ComputeStats(items []WorkItem, now time.Time, loc *time.Location) Stats {
	return Stats{
		TotalRevenue:      TotalRevenue(items),
		PendingRevenue:    PendingRevenue(items),
		WinRate:           WinRate(items),
		AverageQuoteValue: AverageQuoteValue(items),
		ScheduledToday:    ScheduledTodayCount(items, now, loc),
		Buckets:           CountByBucket(items),
	}
}

// TotalRevenue sums the totals of paid, non-archived items.
func TotalRevenue(items []WorkItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		if !IsActive(item) {
			continue
		}
		if item.PaidAt != nil {
			sum = sum.Add(item.Total)
		}
	}
	return sum
}

// PendingRevenue sums the totals of completed but not yet paid items.
func PendingRevenue(items []WorkItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		if !IsActive(item) {
			continue
		}
		if item.CompletedAt != nil && item.PaidAt == nil {
			sum = sum.Add(item.Total)
		}
	}
	return sum
}

// CountByBucket tallies items per canonical bucket.
func CountByBucket(items []WorkItem) map[Bucket]int {
	counts := make(map[Bucket]int)
	for _, item := range items {
		counts[Classify(item)]++
	}
	return counts
}

// WinRate is the share of sent quotes that were signed, as a rounded
// percentage. An item with status signed counts toward both the sent
// population and the wins. Zero when nothing has been sent.
func WinRate(items []WorkItem) int {
	var sent, signed int
	for _, item := range items {
		switch item.Status {
		case StatusSent:
			sent++
		case StatusSigned:
			signed++
		}
	}
	denominator := sent + signed
	if denominator == 0 {
		return 0
	}
	return int(math.Round(100 * float64(signed) / float64(denominator)))
}

// AverageQuoteValue is the mean total across active items, zero when
// there are none.
func AverageQuoteValue(items []WorkItem) decimal.Decimal {
	sum := decimal.Zero
	var count int64
	for _, item := range items {
		if !IsActive(item) {
			continue
		}
		sum = sum.Add(item.Total)
		count++
	}
	if count == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(count)).Round(2)
}

// ScheduledTodayCount counts items whose scheduled_at falls on the
// current calendar day in the viewer's time zone.
func ScheduledTodayCount(items []WorkItem, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	year, month, day := now.In(loc).Date()

	var count int
	for _, item := range items {
		if !IsActive(item) || item.ScheduledAt == nil {
			continue
		}
		y, m, d := item.ScheduledAt.In(loc).Date()
		if y == year && m == month && d == day {
			count++
		}
	}
	return count
}

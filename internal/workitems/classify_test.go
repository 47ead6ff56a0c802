package workitems

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ts(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return &parsed
}

func TestClassify(t *testing.T) {
	scheduled := ts(t, "2026-03-01T09:00:00Z")
	completed := ts(t, "2026-03-02T17:00:00Z")
	paid := ts(t, "2026-03-10T12:00:00Z")

	tests := []struct {
		name string
		item WorkItem
		want Bucket
	}{
		{
			name: "archived wins over everything",
			item: WorkItem{Status: StatusArchived, ScheduledAt: scheduled, CompletedAt: completed, PaidAt: paid},
			want: BucketArchived,
		},
		{
			name: "paid",
			item: WorkItem{Status: StatusSigned, ScheduledAt: scheduled, CompletedAt: completed, PaidAt: paid},
			want: BucketPaid,
		},
		{
			name: "completed but unpaid is invoiceable",
			item: WorkItem{Status: StatusSigned, ScheduledAt: scheduled, CompletedAt: completed},
			want: BucketInvoiceable,
		},
		{
			name: "scheduled",
			item: WorkItem{Status: StatusSigned, ScheduledAt: scheduled},
			want: BucketScheduled,
		},
		{
			name: "accepted without schedule is to-be-scheduled",
			item: WorkItem{Status: StatusAccepted},
			want: BucketToBeScheduled,
		},
		{
			name: "signed without schedule is to-be-scheduled",
			item: WorkItem{Status: StatusSigned},
			want: BucketToBeScheduled,
		},
		{
			name: "lead",
			item: WorkItem{Status: StatusLead},
			want: BucketLead,
		},
		{
			name: "draft is a generic quote",
			item: WorkItem{Status: StatusDraft},
			want: BucketQuote,
		},
		{
			name: "sent is a generic quote",
			item: WorkItem{Status: StatusSent},
			want: BucketQuote,
		},
		{
			name: "declined is a generic quote",
			item: WorkItem{Status: StatusDeclined},
			want: BucketQuote,
		},
		{
			name: "paid without completed still classifies as paid",
			item: WorkItem{Status: StatusSent, PaidAt: paid},
			want: BucketPaid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.item))
		})
	}
}

func TestClassifyIsExclusive(t *testing.T) {
	scheduled := ts(t, "2026-03-01T09:00:00Z")
	completed := ts(t, "2026-03-02T17:00:00Z")
	paid := ts(t, "2026-03-10T12:00:00Z")

	statuses := []Status{StatusLead, StatusDraft, StatusSent, StatusAccepted, StatusSigned, StatusDeclined, StatusArchived}
	timestamps := []*time.Time{nil, scheduled}

	// Every combination of status and timestamps must land in exactly
	// one bucket, and archived items in no active bucket.
	for _, status := range statuses {
		for _, sc := range timestamps {
			for _, co := range []*time.Time{nil, completed} {
				for _, pa := range []*time.Time{nil, paid} {
					item := WorkItem{Status: status, ScheduledAt: sc, CompletedAt: co, PaidAt: pa}
					bucket := Classify(item)
					require.NotEmpty(t, bucket)
					if status == StatusArchived {
						require.Equal(t, BucketArchived, bucket)
						require.False(t, IsActive(item))
					} else {
						require.NotEqual(t, BucketArchived, bucket)
						require.True(t, IsActive(item))
					}
				}
			}
		}
	}
}

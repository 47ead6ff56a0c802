package workitems

// Bucket is the single mutually exclusive lifecycle stage a work item
// occupies. Every item classifies into exactly one bucket.
type Bucket string

const (
	BucketArchived      Bucket = "archived"
	BucketPaid          Bucket = "paid"
	BucketInvoiceable   Bucket = "invoiceable"
	BucketScheduled     Bucket = "scheduled"
	BucketToBeScheduled Bucket = "to_be_scheduled"
	BucketLead          Bucket = "lead"
	BucketQuote         Bucket = "quote"
)

// Classify computes the canonical bucket for a work item. Precedence
// matters: archival wins over everything, then the lifecycle timestamps
// in reverse order (paid, completed, scheduled), then the quoting status.
// First match wins, so an item can never land in two buckets.
func Classify(item WorkItem) Bucket {
	if item.Status == StatusArchived {
		return BucketArchived
	}
	if item.PaidAt != nil {
		return BucketPaid
	}
	if item.CompletedAt != nil {
		return BucketInvoiceable
	}
	if item.ScheduledAt != nil {
		return BucketScheduled
	}
	if item.Status == StatusAccepted || item.Status == StatusSigned {
		return BucketToBeScheduled
	}
	if item.Status == StatusLead {
		return BucketLead
	}
	return BucketQuote
}

// IsActive reports whether the item participates in active views and
// counts. Archived items are excluded everywhere.
func IsActive(item WorkItem) bool {
	return item.Status != StatusArchived
}

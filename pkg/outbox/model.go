package outbox

import "time"

// Status is the delivery state of an outbox row.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Event is an outbox row leased to one relay until LeaseUntil. Attempts
// counts earlier failed dispatches.
type Event struct {
	ID          int64
	AggregateID string
	Type        string
	Payload     []byte
	Headers     map[string]string
	Traceparent string
	RecordedAt  time.Time
	Attempts    int
	LeaseUntil  time.Time
}

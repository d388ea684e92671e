package postgres

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caprisoft/storefront/pkg/outbox"
)

// OutboxStore leases outbox rows to a relay. Rows whose lease expired and
// failed rows under the retry limit are picked up again.
type OutboxStore struct {
	log        *slog.Logger
	pool       *pgxpool.Pool
	maxRetries int
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool, maxRetries int) *OutboxStore {
	return &OutboxStore{log: log, pool: pool, maxRetries: maxRetries}
}

// LockBatch claims up to batchSize deliverable rows for relayID in one
// statement and returns them in id order with the lease they were given.
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	rows, err := s.pool.Query(ctx, `
		WITH batch AS (
			SELECT id FROM outbox
			WHERE status = $3
			   OR (status = $4 AND lease_until < now())
			   OR (status = $5 AND retry_count < $6)
			ORDER BY id
			FOR UPDATE SKIP LOCKED
			LIMIT $1
		)
		UPDATE outbox o
		SET status = $4, relay_id = $2, lease_until = now() + $7 * interval '1 millisecond'
		FROM batch
		WHERE o.id = batch.id
		RETURNING o.id, o.aggregate_id, o.type, o.payload, o.headers, o.traceparent, o.created_at, o.retry_count, o.lease_until
	`, batchSize, relayID,
		string(outbox.StatusPending), string(outbox.StatusInProgress), string(outbox.StatusFailed),
		s.maxRetries, lease.Milliseconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var e outbox.Event
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.Type, &e.Payload, &e.Headers, &e.Traceparent,
			&e.RecordedAt, &e.Attempts, &e.LeaseUntil); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.SortFunc(events, func(a, b outbox.Event) int { return cmp.Compare(a.ID, b.ID) })
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE outbox SET status=$2, lease_until=NULL WHERE id = ANY($1)`,
		ids, string(outbox.StatusSent))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("no rows updated")
	}
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status=$3, last_error=$2, retry_count=retry_count+1, lease_until=NULL WHERE id=$1`,
		id, errMsg, string(outbox.StatusFailed))
	return err
}

func (s *OutboxStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET lease_until=now() + $1 * interval '1 millisecond' WHERE id = ANY($2) AND relay_id=$3 AND status=$4`,
		lease.Milliseconds(), ids, relayID, string(outbox.StatusInProgress))
	return err
}

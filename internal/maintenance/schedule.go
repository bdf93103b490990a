// Package maintenance keeps the shared schedule of background jobs that
// must run once across all replicas, such as session snapshots.
package maintenance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kewalaka/muffinbot/internal/r2client"
)

// Record is the schedule document.
type Record struct {
	LastSnapshot   int64  `json:"last_snapshot"`
	LastSnapshotBy string `json:"last_snapshot_by,omitempty"`
	UpdatedAt      int64  `json:"updated_at"`
}

type objectStore interface {
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Put(ctx context.Context, key string, body io.Reader, opts r2client.PutOptions) (string, error)
}

// Ledger stores the Record in one object and updates it with an ETag
// compare-and-swap.
type Ledger struct {
	store          objectStore
	key            string
	requestTimeout time.Duration
	now            func() time.Time
}

// NewLedger creates a ledger at key.
func NewLedger(store objectStore, key string, requestTimeout time.Duration) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("maintenance: object store is required")
	}
	if key == "" {
		return nil, errors.New("maintenance: schedule key is required")
	}
	return &Ledger{store: store, key: key, requestTimeout: requestTimeout, now: time.Now}, nil
}

// Load returns the record and its ETag; exists is false when the object is
// missing. Transient errors are retried twice; cancellation is not.
func (l *Ledger) Load(ctx context.Context) (rec Record, etag string, exists bool, err error) {
	const attempts = 3
	for attempt := range attempts {
		rec, etag, exists, err = l.loadOnce(ctx)
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return rec, etag, exists, err
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return Record{}, "", false, ctx.Err()
		case <-time.After(100 * time.Millisecond * time.Duration(attempt+1)):
		}
	}
	return Record{}, "", false, err
}

func (l *Ledger) loadOnce(ctx context.Context) (Record, string, bool, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	body, etag, err := l.store.Get(ctx, l.key)
	if errors.Is(err, r2client.ErrNotFound) {
		return Record{}, "", false, nil
	}
	if err != nil {
		return Record{}, "", false, fmt.Errorf("maintenance: load schedule: %w", err)
	}
	defer body.Close()

	var rec Record
	if err := json.NewDecoder(body).Decode(&rec); err != nil {
		return Record{}, "", false, fmt.Errorf("maintenance: decode schedule: %w", err)
	}
	return rec, etag, true, nil
}

// Update applies fn to the current record and writes it back, retrying when
// another replica wrote in between.
func (l *Ledger) Update(ctx context.Context, fn func(*Record)) error {
	for range 3 {
		rec, etag, exists, err := l.Load(ctx)
		if err != nil {
			return err
		}

		fn(&rec)
		rec.UpdatedAt = l.now().UTC().Unix()
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("maintenance: encode schedule: %w", err)
		}

		opts := r2client.PutOptions{ContentType: "application/json"}
		if exists {
			opts.IfMatch = etag
		} else {
			opts.IfAbsent = true
		}

		writeCtx, cancel := l.withTimeout(ctx)
		_, err = l.store.Put(writeCtx, l.key, bytes.NewReader(data), opts)
		cancel()
		if err == nil {
			return nil
		}
		if !errors.Is(err, r2client.ErrPreconditionFailed) {
			return fmt.Errorf("maintenance: write schedule: %w", err)
		}
	}
	return errors.New("maintenance: schedule update lost to concurrent writers")
}

// SnapshotDue reports whether at least interval has passed since the last
// recorded snapshot. A missing record is always due.
func (l *Ledger) SnapshotDue(ctx context.Context, interval time.Duration) (bool, error) {
	rec, _, exists, err := l.Load(ctx)
	if err != nil {
		return false, err
	}
	if !exists || rec.LastSnapshot == 0 {
		return true, nil
	}
	last := time.Unix(rec.LastSnapshot, 0)
	return l.now().Sub(last) >= interval, nil
}

// MarkSnapshot records a completed snapshot by owner.
func (l *Ledger) MarkSnapshot(ctx context.Context, owner string) error {
	at := l.now().UTC().Unix()
	return l.Update(ctx, func(r *Record) {
		r.LastSnapshot = at
		r.LastSnapshotBy = owner
	})
}

func (l *Ledger) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.requestTimeout)
}

package r2client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LeaseRecord is the JSON document stored at the lease key.
type LeaseRecord struct {
	Owner     string    `json:"owner"`
	Host      string    `json:"host,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Lease is a time-bounded claim on a key, used so only one instance
// uploads snapshots. Writes are conditional on the ETag last seen, so two
// instances can never both believe they hold it.
type Lease struct {
	client *Client
	key    string
	ttl    time.Duration
	owner  string
	host   string
	now    func() time.Time

	mu   sync.Mutex
	etag string // Empty when not held
}

// NewLease creates a lease on key with a fresh owner ID.
func NewLease(client *Client, key string, ttl time.Duration) *Lease {
	host, _ := os.Hostname()
	return &Lease{
		client: client,
		key:    key,
		ttl:    ttl,
		owner:  uuid.NewString(),
		host:   host,
		now:    time.Now,
	}
}

// Owner returns the ID written into the lease record.
func (l *Lease) Owner() string {
	return l.owner
}

// Held reports whether the last Acquire or Renew succeeded.
func (l *Lease) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.etag != ""
}

// Acquire claims the lease. It returns false without error when another
// owner holds an unexpired lease.
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tag, err := l.write(ctx, PutOptions{IfAbsent: true})
	if err == nil {
		l.etag = tag
		return true, nil
	}
	if !errors.Is(err, ErrPreconditionFailed) {
		return false, err
	}

	current, currentTag, err := l.read(ctx)
	if errors.Is(err, ErrNotFound) {
		// Released between our write and read; try once more next round.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if current.Owner != l.owner && l.now().Before(current.ExpiresAt) {
		return false, nil
	}

	tag, err = l.write(ctx, PutOptions{IfMatch: currentTag})
	if errors.Is(err, ErrPreconditionFailed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	l.etag = tag
	return true, nil
}

// Renew extends a held lease. It returns false when the lease was lost.
func (l *Lease) Renew(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.etag == "" {
		return false, nil
	}
	tag, err := l.write(ctx, PutOptions{IfMatch: l.etag})
	if errors.Is(err, ErrPreconditionFailed) || errors.Is(err, ErrNotFound) {
		l.etag = ""
		return false, nil
	}
	if err != nil {
		return false, err
	}
	l.etag = tag
	return true, nil
}

// Release deletes the lease record if this owner still holds it.
func (l *Lease) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.etag == "" {
		return nil
	}
	l.etag = ""

	current, _, err := l.read(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if current.Owner != l.owner {
		return nil
	}
	return l.client.Delete(ctx, l.key)
}

func (l *Lease) write(ctx context.Context, opts PutOptions) (string, error) {
	data, err := json.Marshal(LeaseRecord{
		Owner:     l.owner,
		Host:      l.host,
		ExpiresAt: l.now().Add(l.ttl).UTC(),
	})
	if err != nil {
		return "", err
	}
	opts.ContentType = "application/json"
	return l.client.Put(ctx, l.key, bytes.NewReader(data), opts)
}

func (l *Lease) read(ctx context.Context) (LeaseRecord, string, error) {
	body, tag, err := l.client.Get(ctx, l.key)
	if err != nil {
		return LeaseRecord{}, "", err
	}
	defer body.Close()

	// A corrupt record decodes as expired so it can be replaced.
	var rec LeaseRecord
	if err := json.NewDecoder(body).Decode(&rec); err != nil {
		return LeaseRecord{}, tag, nil
	}
	return rec, tag, nil
}

package maintenance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/kewalaka/muffinbot/internal/r2client"
)

type fakeStore struct {
	mu       sync.Mutex
	body     []byte
	etag     string
	seq      int
	getErrs  []error
	getCalls int
	// conflicts makes the next N conditional writes fail as if another
	// replica had written first.
	conflicts int
}

func (f *fakeStore) Get(_ context.Context, _ string) (io.ReadCloser, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getCalls++
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		return nil, "", err
	}
	if f.body == nil {
		return nil, "", r2client.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(f.body)), f.etag, nil
}

func (f *fakeStore) Put(_ context.Context, _ string, body io.Reader, opts r2client.PutOptions) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conflicts > 0 {
		f.conflicts--
		return "", r2client.ErrPreconditionFailed
	}
	if opts.IfAbsent && f.body != nil {
		return "", r2client.ErrPreconditionFailed
	}
	if opts.IfMatch != "" && opts.IfMatch != f.etag {
		return "", r2client.ErrPreconditionFailed
	}
	f.seq++
	f.body = data
	f.etag = fmt.Sprintf("v%d", f.seq)
	return f.etag, nil
}

func newTestLedger(t *testing.T, store *fakeStore, now time.Time) *Ledger {
	t.Helper()
	l, err := NewLedger(store, "state/snapshot-schedule.json", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	l.now = func() time.Time { return now }
	return l
}

func TestNewLedger_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewLedger(nil, "k", 0); err == nil {
		t.Error("expected error for nil store")
	}
	if _, err := NewLedger(&fakeStore{}, "", 0); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestLedger_LoadMissing(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, &fakeStore{}, time.Now())

	_, _, exists, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if exists {
		t.Error("exists = true for missing object")
	}
}

func TestLedger_LoadRetriesTransientErrors(t *testing.T) {
	t.Parallel()
	store := &fakeStore{getErrs: []error{errors.New("reset"), errors.New("reset")}}
	l := newTestLedger(t, store, time.Now())

	if _, _, _, err := l.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v, want success on third attempt", err)
	}
	if store.getCalls != 3 {
		t.Errorf("getCalls = %d, want 3", store.getCalls)
	}
}

func TestLedger_LoadDoesNotRetryCancellation(t *testing.T) {
	t.Parallel()
	store := &fakeStore{getErrs: []error{context.Canceled}}
	l := newTestLedger(t, store, time.Now())

	if _, _, _, err := l.Load(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Load() error = %v, want context.Canceled", err)
	}
	if store.getCalls != 1 {
		t.Errorf("getCalls = %d, want 1", store.getCalls)
	}
}

func TestLedger_LoadCorruptRecord(t *testing.T) {
	t.Parallel()
	store := &fakeStore{body: []byte("{oops"), etag: "v1"}
	l := newTestLedger(t, store, time.Now())

	if _, _, _, err := l.Load(context.Background()); err == nil {
		t.Error("expected decode error")
	}
}

func TestLedger_SnapshotDue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{}
	l := newTestLedger(t, store, now)

	due, err := l.SnapshotDue(ctx, time.Hour)
	if err != nil || !due {
		t.Fatalf("SnapshotDue() with no record = %v, %v; want true", due, err)
	}

	if err := l.MarkSnapshot(ctx, "replica-a"); err != nil {
		t.Fatalf("MarkSnapshot() error = %v", err)
	}

	l.now = func() time.Time { return now.Add(30 * time.Minute) }
	if due, _ := l.SnapshotDue(ctx, time.Hour); due {
		t.Error("SnapshotDue() after 30m = true, want false")
	}

	l.now = func() time.Time { return now.Add(time.Hour) }
	if due, _ := l.SnapshotDue(ctx, time.Hour); !due {
		t.Error("SnapshotDue() after 1h = false, want true")
	}

	rec, _, _, err := l.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rec.LastSnapshotBy != "replica-a" || rec.LastSnapshot != now.Unix() {
		t.Errorf("record = %+v", rec)
	}
}

func TestLedger_UpdateRetriesOnConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &fakeStore{conflicts: 2}
	l := newTestLedger(t, store, time.Now())

	calls := 0
	err := l.Update(ctx, func(r *Record) {
		calls++
		r.LastSnapshotBy = "replica-b"
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("updater called %d times, want 3", calls)
	}
}

func TestLedger_UpdateGivesUp(t *testing.T) {
	t.Parallel()
	store := &fakeStore{conflicts: 10}
	l := newTestLedger(t, store, time.Now())

	if err := l.Update(context.Background(), func(*Record) {}); err == nil {
		t.Error("expected error after repeated conflicts")
	}
}

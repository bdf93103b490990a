// Package snapshot backs up the session database to object storage and
// restores it on a fresh host. Only the instance holding the snapshot lease
// uploads, so replicas sharing a bucket never overwrite each other.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kewalaka/muffinbot/internal/logger"
	"github.com/kewalaka/muffinbot/internal/metrics"
	"github.com/kewalaka/muffinbot/internal/r2client"
)

// Operation and status labels for snapshot metrics.
const (
	opUpload  = "upload"
	opRestore = "restore"

	statusOK      = "ok"
	statusError   = "error"
	statusSkipped = "skipped"
	statusMissing = "missing"
)

// ErrNotLeader is returned by Upload when another instance holds the lease.
var ErrNotLeader = errors.New("snapshot: lease held by another instance")

// ObjectStore is the storage used for snapshot payloads.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, opts r2client.PutOptions) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Leaser elects the single uploading instance.
type Leaser interface {
	Acquire(ctx context.Context) (bool, error)
	Renew(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
	Held() bool
	Owner() string
}

// Schedule is the replica-wide record of completed uploads.
type Schedule interface {
	SnapshotDue(ctx context.Context, interval time.Duration) (bool, error)
	MarkSnapshot(ctx context.Context, owner string) error
}

// Source produces a consistent copy of the live database.
type Source interface {
	CreateSnapshot(ctx context.Context, destPath string) error
}

// Config holds snapshot settings.
type Config struct {
	Key      string        // Object key of the compressed snapshot
	TempDir  string        // Scratch space for the uncompressed copy
	Interval time.Duration // Period of Run
}

// Manager uploads and restores session-database snapshots.
type Manager struct {
	store    ObjectStore
	lease    Leaser
	schedule Schedule
	cfg      Config
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// Option configures a Manager.
type Option func(*Manager)

// WithSchedule skips uploads when another replica uploaded within the
// interval.
func WithSchedule(s Schedule) Option {
	return func(m *Manager) { m.schedule = s }
}

// New creates a Manager. lease may be nil for restore-only use.
func New(store ObjectStore, lease Leaser, cfg Config, log *logger.Logger, m *metrics.Metrics, opts ...Option) *Manager {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	mgr := &Manager{
		store:   store,
		lease:   lease,
		cfg:     cfg,
		log:     log.WithModule("snapshot"),
		metrics: m,
	}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr
}

// RestoreIfMissing downloads the latest snapshot to dbPath when no local
// database exists. It reports whether a snapshot was restored. A missing
// remote snapshot is not an error.
func (m *Manager) RestoreIfMissing(ctx context.Context, dbPath string) (bool, error) {
	if _, err := os.Stat(dbPath); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", dbPath, err)
	}

	body, etag, err := m.store.Get(ctx, m.cfg.Key)
	if errors.Is(err, r2client.ErrNotFound) {
		m.metrics.RecordSnapshot(opRestore, statusMissing)
		m.log.Info("No snapshot to restore", "key", m.cfg.Key)
		return false, nil
	}
	if err != nil {
		m.metrics.RecordSnapshot(opRestore, statusError)
		return false, fmt.Errorf("download snapshot: %w", err)
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		m.metrics.RecordSnapshot(opRestore, statusError)
		return false, fmt.Errorf("create data dir: %w", err)
	}
	if err := r2client.DecompressTo(body, dbPath); err != nil {
		m.metrics.RecordSnapshot(opRestore, statusError)
		return false, fmt.Errorf("restore snapshot: %w", err)
	}

	m.metrics.RecordSnapshot(opRestore, statusOK)
	m.log.Info("Session database restored from snapshot", "key", m.cfg.Key, "etag", etag)
	return true, nil
}

// Upload compresses a copy of src and stores it, provided this instance
// holds (or can take) the lease. It returns ErrNotLeader otherwise.
func (m *Manager) Upload(ctx context.Context, src Source) (string, error) {
	leader, err := m.ensureLease(ctx)
	if err != nil {
		m.metrics.RecordSnapshot(opUpload, statusError)
		return "", fmt.Errorf("snapshot lease: %w", err)
	}
	if !leader {
		m.metrics.RecordSnapshot(opUpload, statusSkipped)
		return "", ErrNotLeader
	}

	etag, err := m.upload(ctx, src)
	if err != nil {
		m.metrics.RecordSnapshot(opUpload, statusError)
		return "", err
	}
	m.metrics.RecordSnapshot(opUpload, statusOK)
	return etag, nil
}

func (m *Manager) upload(ctx context.Context, src Source) (string, error) {
	raw := filepath.Join(m.cfg.TempDir, fmt.Sprintf("sessions-%d.db", time.Now().UnixNano()))
	if err := src.CreateSnapshot(ctx, raw); err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(raw)

	packed := raw + ".zst"
	if err := r2client.CompressFile(raw, packed); err != nil {
		return "", fmt.Errorf("compress snapshot: %w", err)
	}
	defer os.Remove(packed)

	f, err := os.Open(packed)
	if err != nil {
		return "", err
	}
	defer f.Close()

	etag, err := m.store.Put(ctx, m.cfg.Key, f, r2client.PutOptions{ContentType: r2client.ContentTypeZstd})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	return etag, nil
}

// ensureLease renews a held lease or tries to take a free one.
func (m *Manager) ensureLease(ctx context.Context) (bool, error) {
	if m.lease == nil {
		return true, nil
	}
	if m.lease.Held() {
		ok, err := m.lease.Renew(ctx)
		if err != nil || ok {
			return ok, err
		}
		m.log.Warn("Snapshot lease lost, trying to reacquire")
	}
	return m.lease.Acquire(ctx)
}

// Run uploads a snapshot every Config.Interval until ctx is cancelled,
// then releases the lease.
func (m *Manager) Run(ctx context.Context, src Source) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.release()
			return
		case <-ticker.C:
			m.runOnce(ctx, src)
		}
	}
}

func (m *Manager) runOnce(ctx context.Context, src Source) {
	if !m.due(ctx) {
		m.metrics.RecordSnapshot(opUpload, statusSkipped)
		m.log.Debug("Snapshot skipped, a recent upload exists")
		return
	}

	start := time.Now()
	etag, err := m.Upload(ctx, src)
	switch {
	case errors.Is(err, ErrNotLeader):
		m.log.Debug("Snapshot skipped, another instance is uploading")
		return
	case err != nil:
		m.log.WithError(err).Error("Snapshot upload failed")
		return
	}
	m.log.Info("Snapshot uploaded", "etag", etag, "duration_ms", time.Since(start).Milliseconds())

	if m.schedule != nil {
		owner := ""
		if m.lease != nil {
			owner = m.lease.Owner()
		}
		if err := m.schedule.MarkSnapshot(ctx, owner); err != nil {
			m.log.WithError(err).Warn("Failed to record snapshot in schedule")
		}
	}
}

// due consults the schedule with a tenth of the interval as slack for
// ticker jitter. Schedule errors do not block uploads.
func (m *Manager) due(ctx context.Context) bool {
	if m.schedule == nil {
		return true
	}
	due, err := m.schedule.SnapshotDue(ctx, m.cfg.Interval-m.cfg.Interval/10)
	if err != nil {
		m.log.WithError(err).Warn("Snapshot schedule unavailable")
		return true
	}
	return due
}

func (m *Manager) release() {
	if m.lease == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.lease.Release(ctx); err != nil {
		m.log.WithError(err).Warn("Failed to release snapshot lease")
	}
}

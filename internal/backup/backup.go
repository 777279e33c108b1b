package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const snapshotSuffix = ".db.enc"

// ObjectStore is the subset of the S3 API used for snapshots.
type ObjectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Client builds a path-style client suitable for S3-compatible providers.
func NewS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

type Config struct {
	Bucket     string
	Prefix     string
	Passphrase string
	Retention  time.Duration
}

// Snapshot describes one uploaded backup object.
type Snapshot struct {
	Key       string
	Size      int64
	CreatedAt time.Time
}

// Recorder receives the outcome of each scheduled run. *metrics.Metrics
// satisfies it.
type Recorder interface {
	Backup(ok bool)
}

// Manager takes encrypted snapshots of the database and uploads them.
type Manager struct {
	db       *sql.DB
	client   ObjectStore
	cfg      Config
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	last *Snapshot
}

func NewManager(db *sql.DB, client ObjectStore, cfg Config, recorder Recorder, logger *slog.Logger) *Manager {
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &Manager{
		db:       db,
		client:   client,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Last returns the most recent successful snapshot, or nil.
func (m *Manager) Last() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil
	}
	s := *m.last
	return &s
}

func (m *Manager) key(at time.Time) string {
	name := "kringle-" + at.UTC().Format("2006-01-02T150405Z") + snapshotSuffix
	if m.cfg.Prefix == "" {
		return name
	}
	return m.cfg.Prefix + "/" + name
}

// Run snapshots the database with VACUUM INTO, seals it and uploads it.
func (m *Manager) Run(ctx context.Context) (*Snapshot, error) {
	dir, err := os.MkdirTemp("", "kringle-backup-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return nil, fmt.Errorf("vacuum into snapshot: %w", err)
	}
	plain, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := Seal(plain, m.cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("seal snapshot: %w", err)
	}

	now := m.now().UTC()
	snap := &Snapshot{Key: m.key(now), Size: int64(len(sealed)), CreatedAt: now}
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(snap.Key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(snap.Size),
	})
	if err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}

	m.mu.Lock()
	m.last = snap
	m.mu.Unlock()
	return snap, nil
}

// Prune deletes snapshots under the prefix older than the retention period
// and returns the deleted keys. A zero retention keeps everything.
func (m *Manager) Prune(ctx context.Context) ([]string, error) {
	if m.cfg.Retention <= 0 {
		return nil, nil
	}
	cutoff := m.now().Add(-m.cfg.Retention)

	prefix := m.cfg.Prefix
	if prefix != "" {
		prefix += "/"
	}
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(m.cfg.Bucket),
		Prefix: aws.String(prefix),
	}

	var deleted []string
	var errs []error
	for {
		out, err := m.client.ListObjectsV2(ctx, input)
		if err != nil {
			return deleted, fmt.Errorf("list snapshots: %w", err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, snapshotSuffix) || obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
				continue
			}
			if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(m.cfg.Bucket),
				Key:    aws.String(key),
			}); err != nil {
				errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
				continue
			}
			deleted = append(deleted, key)
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return deleted, errors.Join(errs...)
}

// Start runs a snapshot and prune every interval until ctx is cancelled.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runScheduled(ctx)
		}
	}
}

func (m *Manager) runScheduled(ctx context.Context) {
	snap, err := m.Run(ctx)
	m.record(err == nil)
	if err != nil {
		m.logger.Error("backup failed", "error", err)
		return
	}
	m.logger.Info("backup uploaded", "key", snap.Key, "bytes", snap.Size)

	deleted, err := m.Prune(ctx)
	if err != nil {
		m.logger.Error("backup prune failed", "error", err)
	}
	if len(deleted) > 0 {
		m.logger.Info("old backups pruned", "count", len(deleted))
	}
}

func (m *Manager) record(ok bool) {
	if m.recorder != nil {
		m.recorder.Backup(ok)
	}
}

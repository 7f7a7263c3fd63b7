package vectorindex

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/studyforge/internal/storage"
)

// ErrSnapshotNotFound is returned by a SnapshotStore that holds no snapshot yet
var ErrSnapshotNotFound = errors.New("index snapshot not found")

const snapshotVersion = 1

// Entry is one slot of the index. Its position is its offset in Snapshot.Entries.
type Entry struct {
	RecordID   string
	SegmentID  string
	DocumentID string
	Vector     []float32
}

// Snapshot is the durable form of the index
type Snapshot struct {
	Version    int
	Dimensions int
	Entries    []Entry
	Tombstones []string
}

// SnapshotStore persists index snapshots
type SnapshotStore interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

func encodeSnapshot(snap *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return &snap, nil
}

// FileStore keeps the snapshot in a local file, replaced atomically on save.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return decodeSnapshot(data)
}

func (s *FileStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}

// ObjectStore is the subset of the S3 client used for snapshots
type ObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) error
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// S3Store keeps the snapshot as a single object in an S3-compatible bucket.
type S3Store struct {
	objects ObjectStore
	key     string
}

func NewS3Store(objects ObjectStore, key string) *S3Store {
	if key == "" {
		key = "index/snapshot.gob"
	}
	return &S3Store{objects: objects, key: key}
}

func (s *S3Store) Load(ctx context.Context) (*Snapshot, error) {
	data, err := s.objects.GetObject(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return decodeSnapshot(data)
}

func (s *S3Store) Save(ctx context.Context, snap *Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	return s.objects.PutObject(ctx, s.key, "application/octet-stream", data)
}

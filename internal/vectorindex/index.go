// Package vectorindex is an append-only, brute-force cosine index shared by
// all documents. Searches are scoped to one document by post-filtering.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

var (
	// ErrNotLoaded is returned by writes issued before Load
	ErrNotLoaded = errors.New("index not loaded")
	// ErrDimensionMismatch is returned when a vector length differs from the index
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrZeroVector is returned for vectors that cannot be normalised
	ErrZeroVector = errors.New("zero-length vector")
)

// Embedder turns text into a fixed-length vector
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// RecordSource lists durable vector records, used to verify and repair the snapshot.
type RecordSource interface {
	ListVectorRecordsFrom(ctx context.Context, position int) ([]domain.VectorRecord, error)
}

// Locker serialises index writes across processes that share one snapshot
// store. unlock must be called once the write is durable.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// Scope restricts a search to one document and, optionally, to its
// committed record IDs.
type Scope struct {
	DocumentID string
	RecordIDs  []string
}

// Hit is one search result. Record.Embedding is not populated.
type Hit struct {
	Record domain.VectorRecord
	Score  float32
}

type Config struct {
	Dimensions  int
	Concurrency int
	Locker      Locker
	Logger      *logger.Logger
}

type Index struct {
	embedder    Embedder
	store       SnapshotStore
	records     RecordSource
	locker      Locker
	dims        int
	concurrency int
	log         *logger.Logger
	now         func() time.Time

	// writeMu serialises batches (Add, Tombstone, Load, Persist, refresh).
	writeMu sync.Mutex

	// mu guards the published state below.
	mu         sync.RWMutex
	entries    []Entry
	tombstones map[string]struct{}
	loaded     bool
}

// New creates an index. store and records may be nil for a purely in-memory
// index; a nil Locker is only safe when a single process writes the store.
func New(embedder Embedder, store SnapshotStore, records RecordSource, cfg Config) *Index {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Index{
		embedder:    embedder,
		store:       store,
		records:     records,
		locker:      cfg.Locker,
		dims:        cfg.Dimensions,
		concurrency: concurrency,
		log:         log,
		now:         time.Now,
		tombstones:  make(map[string]struct{}),
	}
}

// Load restores the snapshot and checks it against every durable record.
// A durable record wins over whatever the snapshot holds at its position,
// and the repaired state is written back. Writes are rejected until Load
// succeeds.
func (ix *Index) Load(ctx context.Context) error {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	unlock, err := ix.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	entries, tombstones, err := ix.readSnapshot(ctx, nil)
	if err != nil {
		return err
	}
	entries, repaired, err := ix.mergeDurable(ctx, entries, 0)
	if err != nil {
		return err
	}

	ix.publish(entries, tombstones)
	ix.mu.Lock()
	ix.loaded = true
	ix.mu.Unlock()

	if repaired > 0 {
		ix.log.Warn("index snapshot repaired from durable records", "repaired", repaired, "entries", len(entries))
		if err := ix.saveLocked(ctx, entries, tombstones); err != nil {
			return err
		}
	}
	ix.log.Info("index loaded", "entries", len(entries), "tombstones", len(tombstones))
	return nil
}

// Add embeds segments and appends them as one all-or-nothing batch. Positions
// are assigned under the cross-process lock from the latest stored snapshot,
// and the batch becomes visible to Search only after that snapshot is
// durably rewritten.
func (ix *Index) Add(ctx context.Context, segments []domain.Segment) ([]domain.VectorRecord, error) {
	if len(segments) == 0 {
		return nil, nil
	}

	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	ix.mu.RLock()
	loaded := ix.loaded
	ix.mu.RUnlock()
	if !loaded {
		return nil, domain.ErrIndexWriteFailed.Wrap(ErrNotLoaded)
	}

	vectors := make([][]float32, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)
	for i := range segments {
		g.Go(func() error {
			vec, err := ix.embedder.GenerateEmbedding(gctx, segments[i].Text)
			if err != nil {
				return fmt.Errorf("segment %d: %w", segments[i].SequenceIndex, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.ErrEmbeddingUnavailable.Wrap(err)
	}
	for i, seg := range segments {
		vec, err := ix.prepare(vectors[i])
		if err != nil {
			return nil, domain.ErrIndexWriteFailed.Wrap(fmt.Errorf("segment %d: %w", seg.SequenceIndex, err))
		}
		vectors[i] = vec
	}

	unlock, err := ix.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, tombstones, err := ix.syncLocked(ctx)
	if err != nil {
		return nil, err
	}

	base := len(current)
	added := make([]Entry, len(segments))
	records := make([]domain.VectorRecord, len(segments))
	createdAt := ix.now().UTC()
	for i, seg := range segments {
		id := uuid.NewString()
		added[i] = Entry{RecordID: id, SegmentID: seg.ID, DocumentID: seg.DocumentID, Vector: vectors[i]}
		records[i] = domain.VectorRecord{
			ID:         id,
			SegmentID:  seg.ID,
			DocumentID: seg.DocumentID,
			Position:   base + i,
			Embedding:  vectors[i],
			CreatedAt:  createdAt,
		}
	}

	next := slices.Concat(current, added)
	if err := ix.saveLocked(ctx, next, tombstones); err != nil {
		ix.publish(current, tombstones)
		return nil, err
	}
	ix.publish(next, tombstones)

	return records, nil
}

// Search returns up to k entries of scope's document ranked by cosine
// similarity, ties broken by position. An empty scope yields no hits. When
// scope names committed records this process has not seen, the index is
// refreshed from the store first.
func (ix *Index) Search(ctx context.Context, query []float32, scope Scope, k int) ([]Hit, error) {
	if k <= 0 || scope.DocumentID == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits, missing, err := ix.search(query, scope, k)
	if err != nil || !missing || ix.store == nil {
		return hits, err
	}
	if err := ix.refresh(ctx); err != nil {
		ix.log.Warn("index refresh failed, searching stale state", "document_id", scope.DocumentID, "error", err)
		return hits, nil
	}
	hits, _, err = ix.search(query, scope, k)
	return hits, err
}

// search reports missing when scope lists record IDs absent from the index.
func (ix *Index) search(query []float32, scope Scope, k int) ([]Hit, bool, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.dims != 0 && len(query) != ix.dims {
		return nil, false, fmt.Errorf("%w: query has %d, index expects %d", ErrDimensionMismatch, len(query), ix.dims)
	}
	q, err := normalize(query)
	if err != nil {
		return nil, false, err
	}
	if _, dead := ix.tombstones[scope.DocumentID]; dead {
		return nil, false, nil
	}

	var allowed map[string]struct{}
	if scope.RecordIDs != nil {
		allowed = make(map[string]struct{}, len(scope.RecordIDs))
		for _, id := range scope.RecordIDs {
			allowed[id] = struct{}{}
		}
	}

	var hits []Hit
	for pos := range ix.entries {
		e := &ix.entries[pos]
		if e.DocumentID != scope.DocumentID {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[e.RecordID]; !ok {
				continue
			}
		}
		hits = append(hits, Hit{
			Record: domain.VectorRecord{
				ID:         e.RecordID,
				SegmentID:  e.SegmentID,
				DocumentID: e.DocumentID,
				Position:   pos,
			},
			Score: dot(q, e.Vector),
		})
	}
	missing := allowed != nil && len(hits) < len(allowed)

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.Position < hits[j].Record.Position
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, missing, nil
}

// RecordsForDocument returns the live records of a document in position order.
func (ix *Index) RecordsForDocument(documentID string) []domain.VectorRecord {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if _, dead := ix.tombstones[documentID]; dead {
		return nil
	}
	var out []domain.VectorRecord
	for pos := range ix.entries {
		e := &ix.entries[pos]
		if e.DocumentID == documentID {
			out = append(out, domain.VectorRecord{
				ID:         e.RecordID,
				SegmentID:  e.SegmentID,
				DocumentID: e.DocumentID,
				Position:   pos,
				Embedding:  e.Vector,
			})
		}
	}
	return out
}

// Tombstone hides every vector of a document. Slots are never reclaimed.
func (ix *Index) Tombstone(ctx context.Context, documentID string) error {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	ix.mu.RLock()
	loaded := ix.loaded
	ix.mu.RUnlock()
	if !loaded {
		return domain.ErrIndexWriteFailed.Wrap(ErrNotLoaded)
	}

	unlock, err := ix.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	entries, tombstones, err := ix.syncLocked(ctx)
	if err != nil {
		return err
	}
	next := make(map[string]struct{}, len(tombstones)+1)
	for id := range tombstones {
		next[id] = struct{}{}
	}
	next[documentID] = struct{}{}

	if err := ix.saveLocked(ctx, entries, next); err != nil {
		ix.publish(entries, tombstones)
		return err
	}
	ix.publish(entries, next)
	return nil
}

// Persist rewrites the snapshot from the latest stored state plus any
// durable records it is missing.
func (ix *Index) Persist(ctx context.Context) error {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	ix.mu.RLock()
	loaded := ix.loaded
	ix.mu.RUnlock()
	if !loaded {
		return domain.ErrIndexWriteFailed.Wrap(ErrNotLoaded)
	}

	unlock, err := ix.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	entries, tombstones, err := ix.syncLocked(ctx)
	if err != nil {
		return err
	}
	ix.publish(entries, tombstones)
	return ix.saveLocked(ctx, entries, tombstones)
}

// Len returns the number of slots, including tombstoned ones.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Dimensions returns the vector length accepted by the index.
func (ix *Index) Dimensions() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dims
}

// refresh pulls in writes made by other processes without taking the
// cross-process lock; snapshot stores replace their content atomically.
func (ix *Index) refresh(ctx context.Context) error {
	ix.writeMu.Lock()
	defer ix.writeMu.Unlock()

	entries, tombstones, err := ix.syncLocked(ctx)
	if err != nil {
		return err
	}
	ix.publish(entries, tombstones)
	return nil
}

// syncLocked returns the latest stored state: the stored snapshot (or the
// in-memory state when the store holds none) followed by durable records
// beyond it. writeMu must be held.
func (ix *Index) syncLocked(ctx context.Context) ([]Entry, map[string]struct{}, error) {
	ix.mu.RLock()
	current := ix.entries
	currentTombstones := ix.tombstones
	ix.mu.RUnlock()

	if ix.store == nil && ix.records == nil {
		return current, currentTombstones, nil
	}

	entries, tombstones, err := ix.readSnapshot(ctx, current)
	if err != nil {
		return nil, nil, domain.ErrIndexWriteFailed.Wrap(err)
	}
	for id := range currentTombstones {
		tombstones[id] = struct{}{}
	}
	entries, _, err = ix.mergeDurable(ctx, entries, len(entries))
	if err != nil {
		return nil, nil, domain.ErrIndexWriteFailed.Wrap(err)
	}
	return entries, tombstones, nil
}

// readSnapshot loads the stored snapshot, falling back to fallback when the
// store is empty or absent.
func (ix *Index) readSnapshot(ctx context.Context, fallback []Entry) ([]Entry, map[string]struct{}, error) {
	tombstones := make(map[string]struct{})
	if ix.store == nil {
		return fallback, tombstones, nil
	}

	snap, err := ix.store.Load(ctx)
	switch {
	case errors.Is(err, ErrSnapshotNotFound):
		return fallback, tombstones, nil
	case err != nil:
		return nil, nil, fmt.Errorf("load index snapshot: %w", err)
	}

	if snap.Dimensions != 0 && ix.dims != 0 && snap.Dimensions != ix.dims {
		return nil, nil, fmt.Errorf("%w: snapshot has %d, index expects %d", ErrDimensionMismatch, snap.Dimensions, ix.dims)
	}
	if ix.dims == 0 {
		ix.mu.Lock()
		ix.dims = snap.Dimensions
		ix.mu.Unlock()
	}
	for _, docID := range snap.Tombstones {
		tombstones[docID] = struct{}{}
	}
	return snap.Entries, tombstones, nil
}

// mergeDurable overlays durable records at or after from onto entries. A
// record replaces a snapshot entry holding a different ID at its position;
// positions without a record keep the snapshot entry, and holes past the
// end become empty slots no search can match. It returns the number of
// slots it changed.
func (ix *Index) mergeDurable(ctx context.Context, entries []Entry, from int) ([]Entry, int, error) {
	if ix.records == nil {
		return entries, 0, nil
	}
	recs, err := ix.records.ListVectorRecordsFrom(ctx, from)
	if err != nil {
		return nil, 0, fmt.Errorf("list durable vector records: %w", err)
	}
	if len(recs) == 0 {
		return entries, 0, nil
	}

	out := slices.Clone(entries)
	changed := 0
	for _, rec := range recs {
		if rec.Position < 0 {
			return nil, 0, fmt.Errorf("durable record %s has negative position %d", rec.ID, rec.Position)
		}
		if rec.Position < len(out) && out[rec.Position].RecordID == rec.ID {
			continue
		}
		vec, err := ix.prepare(rec.Embedding)
		if err != nil {
			return nil, 0, fmt.Errorf("durable record %s: %w", rec.ID, err)
		}
		for len(out) <= rec.Position {
			out = append(out, Entry{})
		}
		out[rec.Position] = Entry{
			RecordID:   rec.ID,
			SegmentID:  rec.SegmentID,
			DocumentID: rec.DocumentID,
			Vector:     vec,
		}
		changed++
	}
	return out, changed, nil
}

func (ix *Index) publish(entries []Entry, tombstones map[string]struct{}) {
	ix.mu.Lock()
	ix.entries = entries
	ix.tombstones = tombstones
	ix.mu.Unlock()
}

func (ix *Index) lock(ctx context.Context) (func(), error) {
	if ix.locker == nil {
		return func() {}, nil
	}
	unlock, err := ix.locker.Lock(ctx)
	if err != nil {
		return nil, domain.ErrIndexWriteFailed.Wrap(fmt.Errorf("acquire index lock: %w", err))
	}
	return unlock, nil
}

// saveLocked must be called with writeMu held.
func (ix *Index) saveLocked(ctx context.Context, entries []Entry, tombstones map[string]struct{}) error {
	if ix.store == nil {
		return nil
	}
	snap := &Snapshot{
		Version:    snapshotVersion,
		Dimensions: ix.dims,
		Entries:    entries,
		Tombstones: make([]string, 0, len(tombstones)),
	}
	for id := range tombstones {
		snap.Tombstones = append(snap.Tombstones, id)
	}
	sort.Strings(snap.Tombstones)

	if err := ix.store.Save(ctx, snap); err != nil {
		return domain.ErrIndexWriteFailed.Wrap(err)
	}
	return nil
}

// prepare checks the vector length and returns a normalised copy. The first
// vector seen fixes the dimension of an index created without one.
func (ix *Index) prepare(vec []float32) ([]float32, error) {
	if ix.dims == 0 {
		ix.mu.Lock()
		if ix.dims == 0 {
			ix.dims = len(vec)
		}
		ix.mu.Unlock()
	}
	if len(vec) != ix.dims {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), ix.dims)
	}
	return normalize(vec)
}

func normalize(vec []float32) ([]float32, error) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return nil, ErrZeroVector
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

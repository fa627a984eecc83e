package session

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tabletalk/tabletalk/internal/storage"
	"github.com/tabletalk/tabletalk/internal/tabular"
)

type Config struct {
	TTL         time.Duration
	MaxSessions int
}

// Store is the in-memory session registry. Expired sessions are swept
// on create and evicted on access; their snapshots are deleted from the
// object store best-effort.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	cfg      Config
	objects  storage.ObjectStore
	now      func() time.Time
}

func NewStore(cfg Config, objects storage.ObjectStore) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 256
	}
	return &Store{
		sessions: make(map[string]*session),
		cfg:      cfg,
		objects:  objects,
		now:      time.Now,
	}
}

func (s *Store) Create(ctx context.Context, tenant string) (Info, error) {
	now := s.now()

	s.mu.Lock()
	expired := s.sweepLocked(now)
	if len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		s.deleteSnapshots(ctx, expired)
		return Info{}, ErrTooManySessions
	}
	sess := &session{
		id:        uuid.NewString(),
		tenant:    tenant,
		createdAt: now,
		lastSeen:  now,
	}
	s.sessions[sess.id] = sess
	info := sess.info()
	s.mu.Unlock()

	s.deleteSnapshots(ctx, expired)
	return info, nil
}

func (s *Store) Get(ctx context.Context, id string) (Info, error) {
	now := s.now()

	s.mu.Lock()
	sess, key, err := s.locateLocked(id, now)
	if err != nil {
		s.mu.Unlock()
		s.deleteSnapshots(ctx, []string{key})
		return Info{}, err
	}
	sess.lastSeen = now
	info := sess.info()
	s.mu.Unlock()

	return info, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	now := s.now()

	s.mu.Lock()
	sess, key, err := s.locateLocked(id, now)
	if err != nil {
		s.mu.Unlock()
		s.deleteSnapshots(ctx, []string{key})
		return err
	}
	delete(s.sessions, id)
	key = sess.snapshotKey
	s.mu.Unlock()

	s.deleteSnapshots(ctx, []string{key})
	return nil
}

// ReplaceTable commits a freshly loaded table and its encoded snapshot.
// The snapshot upload happens outside the lock; on any failure the
// session keeps its previous table untouched.
func (s *Store) ReplaceTable(ctx context.Context, id string, table *tabular.Table, snapshot []byte) (Info, error) {
	if table == nil {
		return Info{}, fmt.Errorf("table is required")
	}
	now := s.now()

	s.mu.Lock()
	sess, staleKey, err := s.locateLocked(id, now)
	if err != nil {
		s.mu.Unlock()
		s.deleteSnapshots(ctx, []string{staleKey})
		return Info{}, err
	}
	sess.uploadSeq++
	seq := sess.uploadSeq
	oldKey := sess.snapshotKey
	s.mu.Unlock()

	key, err := storage.BuildSnapshotKey(id, seq)
	if err != nil {
		return Info{}, fmt.Errorf("build snapshot key: %w", err)
	}
	if _, err := s.objects.Put(ctx, key, bytes.NewReader(snapshot), int64(len(snapshot)), storage.PutOptions{
		ContentType: storage.SnapshotContentType,
	}); err != nil {
		return Info{}, fmt.Errorf("store snapshot: %w", err)
	}

	s.mu.Lock()
	sess, _, err = s.locateLocked(id, s.now())
	if err != nil {
		s.mu.Unlock()
		// Session vanished while uploading; drop the orphan snapshot.
		s.deleteSnapshots(ctx, []string{key})
		return Info{}, err
	}
	sess.table = table
	sess.snapshotKey = key
	sess.lastSeen = s.now()
	info := sess.info()
	s.mu.Unlock()

	if oldKey != "" && oldKey != key {
		s.deleteSnapshots(ctx, []string{oldKey})
	}
	return info, nil
}

// TableState returns the current table and its snapshot key. The table
// is immutable once loaded, so sharing the pointer is safe.
func (s *Store) TableState(ctx context.Context, id string) (*tabular.Table, string, error) {
	now := s.now()

	s.mu.Lock()
	sess, staleKey, err := s.locateLocked(id, now)
	if err != nil {
		s.mu.Unlock()
		s.deleteSnapshots(ctx, []string{staleKey})
		return nil, "", err
	}
	sess.lastSeen = now
	table, key := sess.table, sess.snapshotKey
	s.mu.Unlock()

	if table == nil {
		return nil, "", ErrNoTable
	}
	return table, key, nil
}

// AppendTurn records one finished turn and assigns its index.
func (s *Store) AppendTurn(ctx context.Context, id string, turn Turn) (Turn, error) {
	now := s.now()

	s.mu.Lock()
	sess, staleKey, err := s.locateLocked(id, now)
	if err != nil {
		s.mu.Unlock()
		s.deleteSnapshots(ctx, []string{staleKey})
		return Turn{}, err
	}
	turn.Index = len(sess.turns)
	turn.CreatedAt = now
	sess.turns = append(sess.turns, turn)
	sess.lastSeen = now
	s.mu.Unlock()

	return turn, nil
}

func (s *Store) Transcript(ctx context.Context, id string) ([]Turn, error) {
	now := s.now()

	s.mu.Lock()
	sess, staleKey, err := s.locateLocked(id, now)
	if err != nil {
		s.mu.Unlock()
		s.deleteSnapshots(ctx, []string{staleKey})
		return nil, err
	}
	sess.lastSeen = now
	turns := make([]Turn, len(sess.turns))
	copy(turns, sess.turns)
	s.mu.Unlock()

	return turns, nil
}

func (s *Store) TurnAt(ctx context.Context, id string, index int) (Turn, error) {
	turns, err := s.Transcript(ctx, id)
	if err != nil {
		return Turn{}, err
	}
	if index < 0 || index >= len(turns) {
		return Turn{}, ErrTurnNotFound
	}
	return turns[index], nil
}

// Count reports live sessions after expiring stale ones.
func (s *Store) Count(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	expired := s.sweepLocked(now)
	n := len(s.sessions)
	s.mu.Unlock()

	s.deleteSnapshots(ctx, expired)
	return n
}

// Sweep evicts every expired session and deletes their snapshots,
// returning the number of sessions evicted. Expiry also happens lazily
// on access; Sweep exists so the janitor reclaims idle sessions on a
// schedule instead of waiting for the next request.
func (s *Store) Sweep(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	before := len(s.sessions)
	keys := s.sweepLocked(now)
	evicted := before - len(s.sessions)
	s.mu.Unlock()

	s.deleteSnapshots(ctx, keys)
	return evicted
}

// SnapshotKeys returns the snapshot keys of all live sessions. The
// janitor treats any other object under the snapshot prefix as an
// orphan.
func (s *Store) SnapshotKeys(ctx context.Context) map[string]struct{} {
	now := s.now()

	s.mu.Lock()
	expired := s.sweepLocked(now)
	keys := make(map[string]struct{}, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.snapshotKey != "" {
			keys[sess.snapshotKey] = struct{}{}
		}
	}
	s.mu.Unlock()

	s.deleteSnapshots(ctx, expired)
	return keys
}

// locateLocked finds a live session. An expired one is evicted and
// reported as not found; its snapshot key is returned for cleanup by
// the caller after unlocking.
func (s *Store) locateLocked(id string, now time.Time) (*session, string, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, "", ErrNotFound
	}
	if now.Sub(sess.lastSeen) > s.cfg.TTL {
		delete(s.sessions, id)
		return nil, sess.snapshotKey, ErrNotFound
	}
	return sess, "", nil
}

func (s *Store) sweepLocked(now time.Time) []string {
	var keys []string
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.cfg.TTL {
			delete(s.sessions, id)
			if sess.snapshotKey != "" {
				keys = append(keys, sess.snapshotKey)
			}
		}
	}
	return keys
}

func (s *Store) deleteSnapshots(ctx context.Context, keys []string) {
	if s.objects == nil {
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		_ = s.objects.Delete(ctx, key)
	}
}

package state

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"vslmanager/logger"
)

// Persister durably stores committed snapshots.
type Persister interface {
	Load(ctx context.Context) (Config, error)
	Save(ctx context.Context, cfg Config) error
}

// Store owns the committed Config. Dispatches are serialized in arrival
// order; reads never wait for an in-flight persist.
type Store struct {
	// turn is a one-slot semaphore. Blocked channel senders are woken in
	// FIFO order, which gives dispatches their arrival ordering.
	turn chan struct{}

	mu  sync.RWMutex
	cfg Config

	persister Persister
	log       *zap.SugaredLogger

	subMu   sync.Mutex
	subs    map[int]chan Config
	nextSub int
}

// Open loads the persisted snapshot and returns a ready Store.
func Open(ctx context.Context, p Persister, log *zap.SugaredLogger) (*Store, error) {
	log = logger.OrNop(log)
	cfg, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return &Store{
		turn:      make(chan struct{}, 1),
		cfg:       cfg,
		persister: p,
		log:       log,
		subs:      make(map[int]chan Config),
	}, nil
}

// Dispatch reduces a against the committed snapshot, persists the result
// and only then makes it visible. On any error the snapshot is unchanged.
func (s *Store) Dispatch(ctx context.Context, a Action) (Config, error) {
	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
	defer func() { <-s.turn }()

	s.mu.RLock()
	cur := s.cfg
	s.mu.RUnlock()

	next, err := Reduce(cur, a)
	if err != nil {
		return cur.Clone(), err
	}
	if err := s.persister.Save(ctx, next); err != nil {
		s.log.Errorw("Failed to persist state", zap.String("action", a.Kind()), zap.Error(err))
		return cur.Clone(), fmt.Errorf("failed to persist %s: %w", a.Kind(), err)
	}

	s.mu.Lock()
	s.cfg = next
	s.mu.Unlock()

	s.log.Debugw("State committed", zap.String("action", a.Kind()))
	s.publish(next)
	return next.Clone(), nil
}

// Snapshot returns a deep copy of the last committed state.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

func (s *Store) Installation(id string) (Installation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.FindInstallation(id)
}

// Subscribe returns a channel that receives every committed snapshot. A slow
// reader only ever sees the newest one. Call cancel to stop receiving.
func (s *Store) Subscribe() (<-chan Config, func()) {
	ch := make(chan Config, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) publish(cfg Config) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- cfg.Clone()
	}
}

// MemoryPersister keeps snapshots in memory. Tests set SaveErr to simulate
// a failing disk.
type MemoryPersister struct {
	mu      sync.Mutex
	Initial Config
	Saved   []Config
	SaveErr error
}

func (m *MemoryPersister) Load(context.Context) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Initial.Clone(), nil
}

func (m *MemoryPersister) Save(_ context.Context, cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Saved = append(m.Saved, cfg.Clone())
	return nil
}

// Last returns the most recently saved snapshot.
func (m *MemoryPersister) Last() (Config, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Saved) == 0 {
		return Config{}, false
	}
	return m.Saved[len(m.Saved)-1].Clone(), true
}

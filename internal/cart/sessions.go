package cart

import (
	"context"
	"sync"
	"time"

	"github.com/egannguyen/storefront/internal/storage"
)

// LoadTimeout bounds the storage read of a cart loaded by Sessions.Get.
var LoadTimeout = 10 * time.Second

type session struct {
	store *Store
	ready chan struct{}
	err   error // set before ready is closed

	lastUsed time.Time // guarded by Sessions.mu
}

func (s *session) loaded() bool {
	select {
	case <-s.ready:
		return s.err == nil
	default:
		return false
	}
}

// Sessions keeps one loaded Store per cart id. Every cart lives under the
// storage key "cart:<id>".
type Sessions struct {
	storage storage.Storage
	opts    []Option
	setup   func(cartID string, s *Store)

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessions creates a registry. setup, if not nil, runs once per cart after
// it has been loaded and before it is handed out; use it to subscribe observers.
func NewSessions(st storage.Storage, setup func(cartID string, s *Store), opts ...Option) *Sessions {
	return &Sessions{
		storage:  st,
		opts:     opts,
		setup:    setup,
		sessions: make(map[string]*session),
	}
}

// Get returns the loaded store for cartID, loading it on first use.
//
// The load is shared by every caller waiting on the same cart, so it is not
// cancelled with ctx; it is bounded by LoadTimeout instead. A failed read is
// returned and not cached, and the next Get tries again.
func (r *Sessions) Get(ctx context.Context, cartID string) (*Store, error) {
	r.mu.Lock()
	if sess, ok := r.sessions[cartID]; ok {
		sess.lastUsed = time.Now()
		r.mu.Unlock()
		select {
		case <-sess.ready:
			if sess.err != nil {
				return nil, sess.err
			}
			return sess.store, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	opts := append([]Option{WithKey("cart:" + cartID)}, r.opts...)
	sess := &session{
		store:    NewStore(r.storage, opts...),
		ready:    make(chan struct{}),
		lastUsed: time.Now(),
	}
	r.sessions[cartID] = sess
	r.mu.Unlock()

	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
	err := sess.store.load(loadCtx)
	cancel()
	if err != nil {
		sess.err = err
		r.mu.Lock()
		if r.sessions[cartID] == sess {
			delete(r.sessions, cartID)
		}
		r.mu.Unlock()
		close(sess.ready)
		sess.store.Close()
		return nil, err
	}

	if r.setup != nil {
		r.setup(cartID, sess.store)
	}
	close(sess.ready)
	return sess.store, nil
}

// Len returns the number of carts held in memory.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictIdle flushes and unloads every cart not requested for at least
// maxIdle and returns their ids. The persisted copies stay; a later Get
// loads them again.
func (r *Sessions) EvictIdle(maxIdle time.Duration) []string {
	type candidate struct {
		id       string
		sess     *session
		lastUsed time.Time
	}

	now := time.Now()
	var candidates []candidate
	r.mu.Lock()
	for id, sess := range r.sessions {
		if now.Sub(sess.lastUsed) >= maxIdle && sess.loaded() {
			candidates = append(candidates, candidate{id: id, sess: sess, lastUsed: sess.lastUsed})
		}
	}
	r.mu.Unlock()

	var evicted []string
	for _, c := range candidates {
		c.sess.store.Flush()

		r.mu.Lock()
		if r.sessions[c.id] != c.sess || !c.sess.lastUsed.Equal(c.lastUsed) {
			r.mu.Unlock()
			continue
		}
		delete(r.sessions, c.id)
		r.mu.Unlock()

		c.sess.store.Close()
		evicted = append(evicted, c.id)
	}
	return evicted
}

// Close flushes and stops every store.
func (r *Sessions) Close() error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for _, sess := range sessions {
		<-sess.ready
		sess.store.Close()
	}
	return nil
}

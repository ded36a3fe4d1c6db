// Package cache holds the read-through view of clients that callers see while
// assignment mutations are in flight.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/caseload/internal/domain/client"
)

var (
	// ErrSnapshotPending indicates the client already has an unsettled speculative update.
	ErrSnapshotPending = errors.New("speculative update already pending for client")
	// ErrSnapshotSettled indicates confirm or rollback was already called for the snapshot.
	ErrSnapshotSettled = errors.New("snapshot already settled")
	// ErrUnknownSnapshot indicates the snapshot was not issued by this cache.
	ErrUnknownSnapshot = errors.New("unknown snapshot")
	// ErrLeakedSnapshots indicates snapshots were never settled.
	ErrLeakedSnapshots = errors.New("unsettled snapshots")
)

type key struct {
	clinicID string
	clientID string
}

// Snapshot captures a cache entry before a speculative update. Exactly one of
// Confirm or Rollback must be called with it.
type Snapshot struct {
	owner   *Cache
	key     key
	prev    *client.Client
	existed bool
	began   time.Time
	settled bool
}

// ClientID returns the client the snapshot covers.
func (s *Snapshot) ClientID() string { return s.key.clientID }

// Cache is a per-instance client store with snapshot and rollback.
type Cache struct {
	mu      sync.Mutex
	entries map[key]*client.Client
	pending map[key]*Snapshot
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an empty cache.
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		entries: make(map[key]*client.Client),
		pending: make(map[key]*Snapshot),
		logger:  logger,
		now:     time.Now,
	}
}

// Put stores the authoritative record for a client. It is ignored while a
// speculative update for that client is pending.
func (c *Cache) Put(cl *client.Client) {
	if cl == nil {
		return
	}
	k := key{cl.ClinicID, cl.ID}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.pending[k]; busy {
		return
	}
	c.entries[k] = cl.Clone()
}

// Get returns a copy of the visible entry.
func (c *Cache) Get(clinicID, clientID string) (*client.Client, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.entries[key{clinicID, clientID}]
	if !ok {
		return nil, false
	}
	return cl.Clone(), true
}

// Begin snapshots the entry and applies update to the visible copy. When no
// entry exists, update receives a blank client carrying the IDs.
func (c *Cache) Begin(clinicID, clientID string, update func(*client.Client)) (*Snapshot, error) {
	k := key{clinicID, clientID}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.pending[k]; busy {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotPending, clientID)
	}

	snap := &Snapshot{owner: c, key: k, began: c.now()}
	cur, ok := c.entries[k]
	if ok {
		snap.prev = cur.Clone()
		snap.existed = true
	} else {
		cur = &client.Client{ID: clientID, ClinicID: clinicID}
	}

	next := cur.Clone()
	if update != nil {
		update(next)
	}
	c.entries[k] = next
	c.pending[k] = snap
	return snap, nil
}

// Confirm replaces the speculative entry with the authoritative record.
func (c *Cache) Confirm(snap *Snapshot, server *client.Client) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.settle(snap); err != nil {
		return err
	}
	if server != nil {
		c.entries[snap.key] = server.Clone()
	}
	return nil
}

// Rollback restores the entry exactly as it was before Begin.
func (c *Cache) Rollback(snap *Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.settle(snap); err != nil {
		return err
	}
	if snap.existed {
		c.entries[snap.key] = snap.prev.Clone()
	} else {
		delete(c.entries, snap.key)
	}
	return nil
}

func (c *Cache) settle(snap *Snapshot) error {
	if snap == nil || snap.owner != c {
		return ErrUnknownSnapshot
	}
	if snap.settled {
		c.logger.Error("snapshot settled twice", "client_id", snap.key.clientID)
		return fmt.Errorf("%w: %s", ErrSnapshotSettled, snap.key.clientID)
	}
	if c.pending[snap.key] != snap {
		return ErrUnknownSnapshot
	}
	snap.settled = true
	delete(c.pending, snap.key)
	return nil
}

// Pending returns the number of unsettled snapshots.
func (c *Cache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close reports snapshots that were never settled and rolls them back.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return nil
	}
	leaked := len(c.pending)
	for k, snap := range c.pending {
		c.logger.Warn("leaked snapshot", "clinic_id", k.clinicID, "client_id", k.clientID, "age", c.now().Sub(snap.began))
		if snap.existed {
			c.entries[k] = snap.prev
		} else {
			delete(c.entries, k)
		}
		snap.settled = true
		delete(c.pending, k)
	}
	return fmt.Errorf("%w: %d", ErrLeakedSnapshots, leaked)
}

package idassigner

import (
	"sync"

	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/store"
)

// key identifies one (account, collection) assignment cache.
type key struct {
	account    ids.AccountId
	collection ids.Collection
}

// cache is the per-tuple assignment state: a monotonic high-water mark
// plus the set of ids below it that are currently unused (freed by a
// delete, or never allocated because the bitmap had gaps).
type cache struct {
	mu      sync.Mutex
	nextID  ids.DocumentId
	freeIDs []ids.DocumentId // sorted ascending, reused lowest-first
}

// Assigner hands out and reclaims DocumentId values, backed by a
// store.Store for reconstruction after restart. It holds no lock
// shared with the store itself — callers that need write ordering use
// store.Store.Lock around an assign/free plus its corresponding batch
// commit.
type Assigner struct {
	s *store.Store

	mu     sync.Mutex
	caches map[key]*cache
}

// New constructs an Assigner over s.
func New(s *store.Store) *Assigner {
	return &Assigner{s: s, caches: make(map[key]*cache)}
}

func (a *Assigner) cacheFor(account ids.AccountId, collection ids.Collection) (*cache, error) {
	a.mu.Lock()
	k := key{account, collection}
	c, ok := a.caches[k]
	a.mu.Unlock()
	if ok {
		return c, nil
	}

	bm, err := a.s.GetBitmap(store.BucketBitmaps, store.DocumentBitmapKey(account, collection))
	if err != nil {
		return nil, err
	}

	c = reconstructCache(bm)

	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.caches[k]; ok {
		return existing, nil
	}
	a.caches[k] = c
	return c, nil
}

// reconstructCache rebuilds a cache from the live document-id bitmap:
// nextID is one past the highest set bit, and freeIDs is every gap
// below it, ascending.
func reconstructCache(bm interface {
	ToSlice() []uint32
	IsEmpty() bool
}) *cache {
	ids_ := bm.ToSlice()
	if len(ids_) == 0 {
		return &cache{nextID: 0}
	}
	highest := ids_[len(ids_)-1]
	live := make(map[uint32]struct{}, len(ids_))
	for _, v := range ids_ {
		live[v] = struct{}{}
	}
	var free []ids.DocumentId
	for v := uint32(0); v < highest; v++ {
		if _, ok := live[v]; !ok {
			free = append(free, ids.DocumentId(v))
		}
	}
	return &cache{nextID: ids.DocumentId(highest) + 1, freeIDs: free}
}

// Assign returns the next DocumentId for (account, collection),
// reusing a freed id before advancing the high-water mark. The caller
// is responsible for committing a WriteBatch that actually marks the
// id live (via MergeBitmap on the document-id bitmap) before releasing
// store.Store.Lock for this tuple — Assign itself performs no I/O
// beyond first-touch reconstruction.
func (a *Assigner) Assign(account ids.AccountId, collection ids.Collection) (ids.DocumentId, error) {
	c, err := a.cacheFor(account, collection)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.freeIDs) > 0 {
		id := c.freeIDs[0]
		c.freeIDs = c.freeIDs[1:]
		return id, nil
	}
	id := c.nextID
	c.nextID++
	return id, nil
}

// Free returns id to the free set for (account, collection) so a
// future Assign call reuses it before the high-water mark advances
// further.
func (a *Assigner) Free(account ids.AccountId, collection ids.Collection, id ids.DocumentId) error {
	c, err := a.cacheFor(account, collection)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	i := 0
	for ; i < len(c.freeIDs); i++ {
		if c.freeIDs[i] >= id {
			break
		}
	}
	if i < len(c.freeIDs) && c.freeIDs[i] == id {
		return nil // already free
	}
	c.freeIDs = append(c.freeIDs, 0)
	copy(c.freeIDs[i+1:], c.freeIDs[i:])
	c.freeIDs[i] = id
	return nil
}

// Forget drops the in-memory cache for (account, collection), forcing
// the next Assign/Free call to reconstruct it from the store. Used
// after a Raft snapshot restore invalidates in-memory assignment
// state.
func (a *Assigner) Forget(account ids.AccountId, collection ids.Collection) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.caches, key{account, collection})
}

package store

import (
	"hash/fnv"
	"sync"

	"github.com/coremail/engine/pkg/ids"
)

// mutexMap is a fixed, power-of-two-sized array of mutexes keyed by a
// stable hash of (account, collection). Unrelated tuples may share a
// bucket — that only costs contention, never correctness, since the
// only thing the lock protects is sequencing (change-log / id
// assignment), not the data itself.
type mutexMap struct {
	buckets []sync.Mutex
	mask    uint32
}

func newMutexMap(size int) *mutexMap {
	n := nextPowerOfTwo(size)
	return &mutexMap{
		buckets: make([]sync.Mutex, n),
		mask:    uint32(n - 1),
	}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	if p == 0 {
		p = 1
	}
	return p
}

func (m *mutexMap) index(account ids.AccountId, collection ids.Collection) uint32 {
	h := fnv.New32a()
	var buf [5]byte
	buf[0] = byte(account >> 24)
	buf[1] = byte(account >> 16)
	buf[2] = byte(account >> 8)
	buf[3] = byte(account)
	buf[4] = byte(collection)
	h.Write(buf[:])
	return h.Sum32() & m.mask
}

// lock acquires the bucket mutex for (account, collection) and returns
// an unlock function.
func (m *mutexMap) lock(account ids.AccountId, collection ids.Collection) func() {
	idx := m.index(account, collection)
	m.buckets[idx].Lock()
	return m.buckets[idx].Unlock
}

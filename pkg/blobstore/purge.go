package blobstore

import (
	"encoding/binary"
	"time"

	"github.com/coremail/engine/pkg/log"
	"github.com/coremail/engine/pkg/store"
)

// blobState accumulates one hash's link census during a Purge scan.
type blobState struct {
	hasMeta     bool
	ownedLinks  int
	liveEph     int
	expiredKeys [][]byte
}

// Purge reclaims storage in two steps: every ephemeral link whose
// expiry has passed is dropped, and every blob left with no live link
// at all — including one that was stored but never linked — is
// physically deleted from the backend along with its metadata. Upload
// paths must commit a link before the next purge cycle can observe
// the blob, or it is treated as orphaned.
func (s *Store) Purge(now time.Time) (removed int, err error) {
	states := make(map[[32]byte]*blobState)
	stateFor := func(key []byte) *blobState {
		var hash [32]byte
		copy(hash[:], key[:32])
		st, ok := states[hash]
		if !ok {
			st = &blobState{}
			states[hash] = st
		}
		return st
	}

	err = s.kv.ScanPrefix(bucketBlobs, nil, func(key, _ []byte) bool {
		if len(key) < 32 {
			return true
		}
		st := stateFor(key)
		rest := key[32:]
		if len(rest) == 0 {
			return true
		}
		switch rest[0] {
		case metaSize:
			st.hasMeta = true
		case linkOwned:
			st.ownedLinks++
		case linkEphemeral:
			if len(rest) < 1+4+8 {
				return true
			}
			expiry := time.Unix(0, int64(binary.BigEndian.Uint64(rest[5:13])))
			if expiry.After(now) {
				st.liveEph++
			} else {
				st.expiredKeys = append(st.expiredKeys, append([]byte(nil), key...))
			}
		}
		return true
	})
	if err != nil {
		return 0, err
	}

	b := store.NewWriteBatch()
	for hash, st := range states {
		for _, key := range st.expiredKeys {
			b.Delete(bucketBlobs, key)
		}
		if st.ownedLinks > 0 || st.liveEph > 0 || !st.hasMeta {
			continue
		}
		if err := s.backend.Delete(hash); err != nil {
			log.Logger.Error().Err(err).Hex("hash", hash[:]).Msg("blob purge: backend delete failed")
			continue
		}
		b.Delete(bucketBlobs, metaKey(hash))
		removed++
	}
	if b.Len() == 0 {
		return 0, nil
	}
	return removed, b.Commit(s.kv)
}

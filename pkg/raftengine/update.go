package raftengine

import (
	"encoding/binary"

	"github.com/coremail/engine/pkg/ids"
)

// UpdateKind discriminates one record in an Update stream.
type UpdateKind uint8

const (
	UpdateBegin UpdateKind = iota
	UpdateChange
	UpdateDocument
	UpdateDelete
	UpdateBlob
	UpdateEof
)

// MaxBatchSize caps a single raft.Log.Data payload. Larger transfers
// are split across consecutive Apply calls by the producer.
const MaxBatchSize = 10 << 20

// Update is one record of the replicated change stream a Raft log
// entry carries. A single raft.Log.Data value is a concatenation of
// Updates terminated by UpdateEof.
type Update struct {
	Kind UpdateKind

	// UpdateBegin
	Account    ids.AccountId
	Collection ids.Collection

	// UpdateChange: the ChangeId the leader assigned plus an opaque,
	// already-encoded change-log entry body (see package changelog's
	// wire format), so a follower appends the identical log record
	// instead of re-deriving a ChangeId of its own.
	ChangeID    ids.ChangeId
	ChangeBytes []byte

	// UpdateDocument: the document's full serialized ORM. The FSM
	// rebuilds values, indexes, tag bitmaps, ACLs and blob links by
	// diffing this against its local copy, so a follower derives
	// byte-identical column-family state without the leader shipping
	// raw KV operations.
	Insert bool
	JmapID ids.JMAPId
	Orm    []byte

	// UpdateDelete
	DocumentID ids.DocumentId

	// UpdateBlob
	BlobHash [32]byte
	BlobData []byte
}

// EncodeStream concatenates updates into the wire form stored in a
// single raft.Log.Data.
func EncodeStream(updates []Update) []byte {
	var buf []byte
	for _, u := range updates {
		buf = appendUpdate(buf, u)
	}
	buf = append(buf, byte(UpdateEof))
	return buf
}

func appendUpdate(buf []byte, u Update) []byte {
	buf = append(buf, byte(u.Kind))
	switch u.Kind {
	case UpdateBegin:
		buf = binary.BigEndian.AppendUint32(buf, uint32(u.Account))
		buf = append(buf, byte(u.Collection))
	case UpdateChange:
		buf = binary.BigEndian.AppendUint64(buf, u.ChangeID)
		buf = appendBytes(buf, u.ChangeBytes)
	case UpdateDocument:
		if u.Insert {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = binary.BigEndian.AppendUint64(buf, uint64(u.JmapID))
		buf = appendBytes(buf, u.Orm)
	case UpdateDelete:
		buf = binary.BigEndian.AppendUint32(buf, uint32(u.DocumentID))
	case UpdateBlob:
		buf = append(buf, u.BlobHash[:]...)
		buf = appendBytes(buf, u.BlobData)
	}
	return buf
}

func appendBytes(buf, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

// DecodeStream parses the wire form produced by EncodeStream, stopping
// at (and not including) the terminating Eof record.
func DecodeStream(data []byte) ([]Update, error) {
	var out []Update
	rest := data
	for {
		if len(rest) < 1 {
			return nil, ids.Corrupt(data, "raftengine: truncated update stream")
		}
		kind := UpdateKind(rest[0])
		rest = rest[1:]
		if kind == UpdateEof {
			return out, nil
		}
		var u Update
		u.Kind = kind
		var err error
		rest, err = decodeUpdateBody(&u, rest)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
}

func decodeUpdateBody(u *Update, rest []byte) ([]byte, error) {
	switch u.Kind {
	case UpdateBegin:
		if len(rest) < 5 {
			return nil, ids.Corrupt(rest, "raftengine: truncated Begin")
		}
		u.Account = ids.AccountId(binary.BigEndian.Uint32(rest[:4]))
		u.Collection = ids.Collection(rest[4])
		return rest[5:], nil
	case UpdateChange:
		if len(rest) < 8 {
			return nil, ids.Corrupt(rest, "raftengine: truncated Change")
		}
		u.ChangeID = binary.BigEndian.Uint64(rest[:8])
		return takeBytes(rest[8:], &u.ChangeBytes)
	case UpdateDocument:
		if len(rest) < 1+8 {
			return nil, ids.Corrupt(rest, "raftengine: truncated Document")
		}
		u.Insert = rest[0] == 1
		u.JmapID = ids.JMAPId(binary.BigEndian.Uint64(rest[1:9]))
		return takeBytes(rest[9:], &u.Orm)
	case UpdateDelete:
		if len(rest) < 4 {
			return nil, ids.Corrupt(rest, "raftengine: truncated Delete")
		}
		u.DocumentID = ids.DocumentId(binary.BigEndian.Uint32(rest[:4]))
		return rest[4:], nil
	case UpdateBlob:
		if len(rest) < 32 {
			return nil, ids.Corrupt(rest, "raftengine: truncated Blob hash")
		}
		copy(u.BlobHash[:], rest[:32])
		return takeBytes(rest[32:], &u.BlobData)
	default:
		return nil, ids.Corrupt(rest, "raftengine: unknown update kind %d", u.Kind)
	}
}

func takeBytes(rest []byte, out *[]byte) ([]byte, error) {
	if len(rest) < 4 {
		return nil, ids.Corrupt(rest, "raftengine: truncated length prefix")
	}
	n := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]
	if uint32(len(rest)) < n {
		return nil, ids.Corrupt(rest, "raftengine: truncated payload")
	}
	*out = append([]byte(nil), rest[:n]...)
	return rest[n:], nil
}

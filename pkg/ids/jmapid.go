package ids

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// JMAPId is the external 64-bit identifier exposed to clients. For most
// collections the low 32 bits are the DocumentId and the high 32 bits
// are a prefix; mail uses the prefix to carry the owning thread id so a
// JMAPId round-trips both the message and the thread it belongs to.
type JMAPId uint64

// NewJMAPId packs a prefix (thread id for mail, zero elsewhere) and a
// document id into a single external identifier.
func NewJMAPId(prefix uint32, doc DocumentId) JMAPId {
	return JMAPId(uint64(prefix)<<32 | uint64(doc))
}

// Document returns the low 32 bits: the DocumentId.
func (id JMAPId) Document() DocumentId {
	return DocumentId(uint64(id) & 0xFFFFFFFF)
}

// Prefix returns the high 32 bits (the thread id, for mail).
func (id JMAPId) Prefix() uint32 {
	return uint32(uint64(id) >> 32)
}

// singletonLiteral is the special external form "singleton", used by
// collections that only ever hold one document (e.g. VacationResponse).
const singletonLiteral = "singleton"

// String renders the external JMAPId form: "i" followed by the
// lowercase hex of the value's little-endian byte representation.
func (id JMAPId) String() string {
	if id == 0 {
		return singletonLiteral
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(id))
	return "i" + hex.EncodeToString(buf[:])
}

// ParseJMAPId parses the external JMAPId form produced by String,
// additionally accepting the "singleton" literal as an alias for 0.
func ParseJMAPId(s string) (JMAPId, error) {
	if s == singletonLiteral {
		return 0, nil
	}
	if len(s) != 17 || s[0] != 'i' {
		return 0, fmt.Errorf("ids: malformed jmap id %q", s)
	}
	raw, err := hex.DecodeString(s[1:])
	if err != nil {
		return 0, fmt.Errorf("ids: malformed jmap id %q: %w", s, err)
	}
	return JMAPId(binary.LittleEndian.Uint64(raw)), nil
}

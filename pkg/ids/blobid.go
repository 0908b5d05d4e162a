package ids

import (
	"bytes"
	"encoding/base32"
	"fmt"
)

// HashSize is the length of the content digest backing a BlobId (a
// SHA-256 digest or equivalent 32-byte hash).
const HashSize = 32

// base32Encoding is RFC 4648's alphabet without padding, matching the
// external BlobId/State string forms.
var base32Encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const (
	blobKindDirect byte = iota
	blobKindInner
)

// BlobId addresses content-addressed bytes. A direct BlobId names a
// whole blob by hash+length. An inner BlobId additionally names a part
// index within a parent blob — used for message-part references so a
// MIME part can be fetched without re-storing its bytes separately.
type BlobId struct {
	Hash [HashSize]byte
	Size uint32

	// Inner is non-nil when this id addresses a sub-part of the blob
	// named by Hash/Size rather than the whole blob.
	Inner *uint32
}

// NewBlobId constructs a direct BlobId from a digest and length.
func NewBlobId(hash [HashSize]byte, size uint32) BlobId {
	return BlobId{Hash: hash, Size: size}
}

// WithPart returns an inner BlobId referencing partIndex within the
// receiver's blob.
func (b BlobId) WithPart(partIndex uint32) BlobId {
	inner := b
	p := partIndex
	inner.Inner = &p
	return inner
}

// String renders the external form: "b" + unpadded base32 of
// (kind-byte ‖ hash ‖ LEB128(size) [‖ LEB128(part)]).
func (b BlobId) String() string {
	var buf bytes.Buffer
	if b.Inner == nil {
		buf.WriteByte(blobKindDirect)
	} else {
		buf.WriteByte(blobKindInner)
	}
	buf.Write(b.Hash[:])
	buf.Write(appendUvarint(nil, uint64(b.Size)))
	if b.Inner != nil {
		buf.Write(appendUvarint(nil, uint64(*b.Inner)))
	}
	return "b" + base32Encoding.EncodeToString(buf.Bytes())
}

// ParseBlobId parses the external form produced by String.
func ParseBlobId(s string) (BlobId, error) {
	if len(s) < 1 || s[0] != 'b' {
		return BlobId{}, fmt.Errorf("ids: malformed blob id %q", s)
	}
	raw, err := base32Encoding.DecodeString(s[1:])
	if err != nil {
		return BlobId{}, fmt.Errorf("ids: malformed blob id %q: %w", s, err)
	}
	if len(raw) < 1+HashSize {
		return BlobId{}, fmt.Errorf("ids: truncated blob id %q", s)
	}
	kind := raw[0]
	rest := raw[1:]
	var id BlobId
	copy(id.Hash[:], rest[:HashSize])
	rest = rest[HashSize:]

	size, n := uvarint(rest)
	if n <= 0 {
		return BlobId{}, fmt.Errorf("ids: malformed blob id length %q", s)
	}
	id.Size = uint32(size)
	rest = rest[n:]

	switch kind {
	case blobKindDirect:
		return id, nil
	case blobKindInner:
		part, n := uvarint(rest)
		if n <= 0 {
			return BlobId{}, fmt.Errorf("ids: malformed blob id part %q", s)
		}
		p := uint32(part)
		id.Inner = &p
		return id, nil
	default:
		return BlobId{}, fmt.Errorf("ids: unknown blob id kind %d", kind)
	}
}

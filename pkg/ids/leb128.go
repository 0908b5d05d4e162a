package ids

import "encoding/binary"

// appendUvarint appends the LEB128 (unsigned varint) encoding of v to
// buf — the variable-width encoding used inside values (blob-id
// external form, state cursors).
func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// uvarint decodes a LEB128 unsigned varint from the front of buf,
// returning the value and the number of bytes consumed (0 on error).
func uvarint(buf []byte) (uint64, int) {
	return binary.Uvarint(buf)
}

package ids

import "fmt"

// StateKind discriminates the three JMAPState variants.
type StateKind uint8

const (
	// StateInitial is the cursor a client presents when it has never
	// synced the collection before.
	StateInitial StateKind = iota
	// StateExact pins a single change_id.
	StateExact
	// StateIntermediate lets a client resume across a partial, paginated
	// Changes response without restarting the fold from Initial.
	StateIntermediate
)

// State is the opaque cursor clients present to "changes" queries.
// Initial has no payload; Exact carries a change_id; Intermediate
// additionally carries an offset into that change_id's fold.
type State struct {
	Kind   StateKind
	Value  ChangeId
	Offset uint64
}

// Initial returns the zero-payload Initial state.
func Initial() State { return State{Kind: StateInitial} }

// Exact returns a State pinned to the given change_id.
func Exact(changeID ChangeId) State { return State{Kind: StateExact, Value: changeID} }

// Intermediate returns a resumable State for a partially-folded change_id.
func Intermediate(changeID ChangeId, offset uint64) State {
	return State{Kind: StateIntermediate, Value: changeID, Offset: offset}
}

// String renders the external form: base32 of a LEB128-encoded
// discriminant followed by the variant's payload.
func (s State) String() string {
	buf := appendUvarint(nil, uint64(s.Kind))
	switch s.Kind {
	case StateExact:
		buf = appendUvarint(buf, s.Value)
	case StateIntermediate:
		buf = appendUvarint(buf, s.Value)
		buf = appendUvarint(buf, s.Offset)
	}
	return base32Encoding.EncodeToString(buf)
}

// ParseState parses the external form produced by String.
func ParseState(s string) (State, error) {
	raw, err := base32Encoding.DecodeString(s)
	if err != nil {
		return State{}, fmt.Errorf("ids: malformed state %q: %w", s, err)
	}
	kind, n := uvarint(raw)
	if n <= 0 {
		return State{}, fmt.Errorf("ids: malformed state %q", s)
	}
	raw = raw[n:]

	switch StateKind(kind) {
	case StateInitial:
		return Initial(), nil
	case StateExact:
		v, n := uvarint(raw)
		if n <= 0 {
			return State{}, fmt.Errorf("ids: malformed exact state %q", s)
		}
		return Exact(v), nil
	case StateIntermediate:
		v, n := uvarint(raw)
		if n <= 0 {
			return State{}, fmt.Errorf("ids: malformed intermediate state %q", s)
		}
		raw = raw[n:]
		off, n := uvarint(raw)
		if n <= 0 {
			return State{}, fmt.Errorf("ids: malformed intermediate state offset %q", s)
		}
		return Intermediate(v, off), nil
	default:
		return State{}, fmt.Errorf("ids: unknown state kind %d", kind)
	}
}

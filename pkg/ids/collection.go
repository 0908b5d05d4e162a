package ids

// Collection is the small enum partitioning an account's documents into
// typed sets. It fits in 8 bits; CollectionNone is the zero-value
// sentinel used by the freshly-allocated Document before a collection
// is assigned, never a valid storage partition on its own.
type Collection uint8

const (
	CollectionNone Collection = iota
	CollectionAccount
	CollectionPushSubscription
	CollectionMail
	CollectionMailbox
	CollectionThread
	CollectionIdentity
	CollectionEmailSubmission
	CollectionVacationResponse
	CollectionPrincipal
	CollectionSieveScript
)

var collectionNames = [...]string{
	CollectionNone:             "None",
	CollectionAccount:          "Account",
	CollectionPushSubscription: "PushSubscription",
	CollectionMail:             "Mail",
	CollectionMailbox:          "Mailbox",
	CollectionThread:           "Thread",
	CollectionIdentity:         "Identity",
	CollectionEmailSubmission:  "EmailSubmission",
	CollectionVacationResponse: "VacationResponse",
	CollectionPrincipal:        "Principal",
	CollectionSieveScript:      "SieveScript",
}

// String implements fmt.Stringer.
func (c Collection) String() string {
	if int(c) < len(collectionNames) {
		return collectionNames[c]
	}
	return "Invalid"
}

// Valid reports whether c is a real storage partition, i.e. not the
// CollectionNone sentinel.
func (c Collection) Valid() bool {
	return c != CollectionNone && int(c) < len(collectionNames)
}

// ParseCollection looks up a Collection by its name. Callers at an API
// boundary should use the returned bool rather than trust a sentinel.
func ParseCollection(name string) (Collection, bool) {
	for i, n := range collectionNames {
		if n == name && Collection(i) != CollectionNone {
			return Collection(i), true
		}
	}
	return CollectionNone, false
}

// TypeState enumerates the change-stream channels a client can
// subscribe to via the state-change bus: numeric discriminants plus a
// None sentinel, with string names only at the wire boundary.
type TypeState uint8

const (
	TypeStateNone TypeState = iota
	TypeStateEmail
	TypeStateMailbox
	TypeStateThread
	TypeStateIdentity
	TypeStateEmailSubmission
	TypeStateEmailDelivery
)

var typeStateNames = [...]string{
	TypeStateNone:            "None",
	TypeStateEmail:           "Email",
	TypeStateMailbox:         "Mailbox",
	TypeStateThread:          "Thread",
	TypeStateIdentity:        "Identity",
	TypeStateEmailSubmission: "EmailSubmission",
	TypeStateEmailDelivery:   "EmailDelivery",
}

func (t TypeState) String() string {
	if int(t) < len(typeStateNames) {
		return typeStateNames[t]
	}
	return "Invalid"
}

// CollectionTypeState maps a document collection to the TypeState
// channel its changes are published under. Collections with no
// subscriber-visible channel (e.g. Account, Principal) return
// (TypeStateNone, false).
func CollectionTypeState(c Collection) (TypeState, bool) {
	switch c {
	case CollectionMail:
		return TypeStateEmail, true
	case CollectionMailbox:
		return TypeStateMailbox, true
	case CollectionThread:
		return TypeStateThread, true
	case CollectionIdentity:
		return TypeStateIdentity, true
	case CollectionEmailSubmission:
		return TypeStateEmailSubmission, true
	default:
		return TypeStateNone, false
	}
}

// TypeStateBitmap is a small bitmask over TypeState values, used by push
// subscriptions and event-source clients to declare which channels they
// want delivered.
type TypeStateBitmap uint16

// Set returns a new bitmap with t set.
func (b TypeStateBitmap) Set(t TypeState) TypeStateBitmap {
	return b | (1 << uint(t))
}

// Has reports whether t is a member of the bitmap.
func (b TypeStateBitmap) Has(t TypeState) bool {
	return b&(1<<uint(t)) != 0
}

// Intersects reports whether b and other share any TypeState.
func (b TypeStateBitmap) Intersects(other TypeStateBitmap) bool {
	return b&other != 0
}

package schema

import (
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/orm"
	"github.com/coremail/engine/pkg/store"
)

// Mail field ids. MailboxIds and Keywords are tagged (bitmap) fields;
// everything else is a plain property. ReceivedAt and Size are indexed
// so mailbox/query can sort and range-filter on them.
const (
	MailFieldMailboxIds orm.FieldId = iota + 1
	MailFieldKeywords
	MailFieldThreadId
	MailFieldSubject
	MailFieldFrom
	MailFieldTo
	MailFieldReceivedAt
	MailFieldSentAt
	MailFieldSize
	MailFieldBlobHash
	MailFieldHeaders
	MailFieldPreview
)

// MailSchema declares Mail's required/indexed/tagged properties.
var MailSchema = orm.Schema{
	MailFieldThreadId:   {Required: true, Indexed: true},
	MailFieldSubject:    {MaxLength: 998, FullText: true},
	MailFieldPreview:    {FullText: true},
	MailFieldReceivedAt: {Required: true, Indexed: true},
	MailFieldSentAt:     {Indexed: true},
	MailFieldSize:       {Required: true, Indexed: true},
	MailFieldBlobHash:   {Required: true},
	MailFieldMailboxIds: {Tagged: true},
	MailFieldKeywords:   {Tagged: true},
}

// Mail is a single message: JMAP's Email object.
type Mail struct {
	base
}

// NewMail returns an empty Mail ready to accumulate properties before
// an insert.
func NewMail(id ids.JMAPId) *Mail {
	return &Mail{base: newBase(id)}
}

func (m *Mail) Collection() ids.Collection { return ids.CollectionMail }

// SetThreadID stages the owning Thread's document id.
func (m *Mail) SetThreadID(doc ids.DocumentId) *Mail {
	m.obj.SetNumber(MailFieldThreadId, int64(doc))
	return m
}

func (m *Mail) SetSubject(subject string) *Mail {
	m.obj.SetText(MailFieldSubject, subject)
	return m
}

func (m *Mail) SetFrom(from string) *Mail {
	m.obj.SetText(MailFieldFrom, from)
	return m
}

func (m *Mail) SetTo(to string) *Mail {
	m.obj.SetText(MailFieldTo, to)
	return m
}

// SetPreview stages the plain-text snippet shown in list views; it also
// feeds the body's term index.
func (m *Mail) SetPreview(preview string) *Mail {
	m.obj.SetText(MailFieldPreview, preview)
	return m
}

func (m *Mail) SetReceivedAt(unixSeconds int64) *Mail {
	m.obj.SetNumber(MailFieldReceivedAt, unixSeconds)
	return m
}

func (m *Mail) SetSentAt(unixSeconds int64) *Mail {
	m.obj.SetNumber(MailFieldSentAt, unixSeconds)
	return m
}

func (m *Mail) SetSize(bytes int64) *Mail {
	m.obj.SetNumber(MailFieldSize, bytes)
	return m
}

// SetBlobHash records the content-addressed hash of the RFC5322 blob
// backing this message.
func (m *Mail) SetBlobHash(hash [32]byte) *Mail {
	m.obj.SetRaw(MailFieldBlobHash, hash[:])
	return m
}

func (m *Mail) BlobHash() ([32]byte, bool) {
	var hash [32]byte
	v, ok := m.obj.Properties[MailFieldBlobHash]
	if !ok || len(v.Raw) != 32 {
		return hash, false
	}
	copy(hash[:], v.Raw)
	return hash, true
}

// AddMailbox stages membership in mailbox doc.
func (m *Mail) AddMailbox(doc ids.DocumentId) *Mail {
	m.obj.AddTag(MailFieldMailboxIds, mailboxTag(doc))
	return m
}

// RemoveMailbox removes membership in mailbox doc.
func (m *Mail) RemoveMailbox(doc ids.DocumentId) *Mail {
	m.obj.RemoveTag(MailFieldMailboxIds, mailboxTag(doc))
	return m
}

func mailboxTag(doc ids.DocumentId) orm.Tag {
	var buf [4]byte
	buf[0] = byte(doc >> 24)
	buf[1] = byte(doc >> 16)
	buf[2] = byte(doc >> 8)
	buf[3] = byte(doc)
	return orm.Tag{Discriminant: store.TagNumeric, Bytes: buf[:]}
}

// AddKeyword stages a JMAP keyword (e.g. "$seen", "$flagged").
func (m *Mail) AddKeyword(keyword string) *Mail {
	m.obj.AddTag(MailFieldKeywords, orm.Tag{Discriminant: store.TagText, Bytes: []byte(keyword)})
	return m
}

func (m *Mail) RemoveKeyword(keyword string) *Mail {
	m.obj.RemoveTag(MailFieldKeywords, orm.Tag{Discriminant: store.TagText, Bytes: []byte(keyword)})
	return m
}

// GetBlobs implements RaftObject: a Mail owns exactly the RFC5322 blob
// it was imported from.
func (m *Mail) GetBlobs() [][32]byte {
	if hash, ok := m.BlobHash(); ok {
		return [][32]byte{hash}
	}
	return nil
}

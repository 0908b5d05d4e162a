package schema

import (
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/orm"
)

const (
	MailboxFieldName orm.FieldId = iota + 1
	MailboxFieldParentId
	MailboxFieldRole
	MailboxFieldSortOrder
	MailboxFieldIsSubscribed
	MailboxFieldTotalEmails
	MailboxFieldUnreadEmails
)

// MailboxSchema declares Mailbox's required/indexed properties. Depth
// and total-mailbox-count limits (mailbox_max_depth, mailbox_max_total)
// are enforced by the method layer against this schema's documents, not
// by the schema itself.
var MailboxSchema = orm.Schema{
	MailboxFieldName:      {Required: true, MaxLength: 255, Indexed: true},
	MailboxFieldParentId:  {Indexed: true},
	MailboxFieldRole:      {Indexed: true},
	MailboxFieldSortOrder: {Indexed: true},
}

// Mailbox is a single folder: JMAP's Mailbox object.
type Mailbox struct {
	base
}

func NewMailbox(id ids.JMAPId) *Mailbox {
	return &Mailbox{base: newBase(id)}
}

func (m *Mailbox) Collection() ids.Collection { return ids.CollectionMailbox }

func (m *Mailbox) SetName(name string) *Mailbox {
	m.obj.SetText(MailboxFieldName, name)
	return m
}

// SetParent stages the parent mailbox's document id. The property is
// always set; 0 is stored like any other document id.
func (m *Mailbox) SetParent(doc ids.DocumentId) *Mailbox {
	m.obj.SetNumber(MailboxFieldParentId, int64(doc))
	return m
}

func (m *Mailbox) SetRole(role string) *Mailbox {
	m.obj.SetText(MailboxFieldRole, role)
	return m
}

func (m *Mailbox) SetSortOrder(order int64) *Mailbox {
	m.obj.SetNumber(MailboxFieldSortOrder, order)
	return m
}

func (m *Mailbox) SetSubscribed(subscribed bool) *Mailbox {
	m.obj.SetBool(MailboxFieldIsSubscribed, subscribed)
	return m
}

// GetBlobs implements RaftObject: a Mailbox owns no blobs directly.
func (m *Mailbox) GetBlobs() [][32]byte { return nil }

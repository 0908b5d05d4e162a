package schema

import (
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/orm"
)

const (
	AccountFieldName orm.FieldId = iota + 1
	AccountFieldIsPersonal
	AccountFieldIsReadOnly
	AccountFieldQuotaUsed
	AccountFieldQuotaMax
)

// AccountSchema declares Account's required/indexed properties. Account
// is a singleton per top-level namespace: its document id is always 0
// and its JMAPId external form is "singleton" (ids.JMAPId zero value).
var AccountSchema = orm.Schema{
	AccountFieldName:     {Required: true, Indexed: true},
	AccountFieldQuotaMax: {Indexed: true},
}

// Account is the top-level owner namespace's own record: display name,
// personal/shared/read-only flags, and quota usage. It carries no blobs
// and is never replicated via blob prefetch.
type Account struct {
	base
}

// NewAccount returns an empty Account for the account's singleton
// document (JMAPId 0, external form "singleton").
func NewAccount() *Account {
	return &Account{base: newBase(0)}
}

func (a *Account) Collection() ids.Collection { return ids.CollectionAccount }

func (a *Account) SetName(name string) *Account {
	a.obj.SetText(AccountFieldName, name)
	return a
}

func (a *Account) SetPersonal(personal bool) *Account {
	a.obj.SetBool(AccountFieldIsPersonal, personal)
	return a
}

func (a *Account) SetReadOnly(readOnly bool) *Account {
	a.obj.SetBool(AccountFieldIsReadOnly, readOnly)
	return a
}

func (a *Account) SetQuotaUsed(bytes int64) *Account {
	a.obj.SetNumber(AccountFieldQuotaUsed, bytes)
	return a
}

func (a *Account) SetQuotaMax(bytes int64) *Account {
	a.obj.SetNumber(AccountFieldQuotaMax, bytes)
	return a
}

// GetBlobs implements RaftObject: an Account owns no blobs directly.
func (a *Account) GetBlobs() [][32]byte { return nil }

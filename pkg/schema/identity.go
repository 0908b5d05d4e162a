package schema

import (
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/orm"
)

const (
	IdentityFieldName orm.FieldId = iota + 1
	IdentityFieldEmail
	IdentityFieldReplyTo
	IdentityFieldBcc
	IdentityFieldTextSignature
	IdentityFieldHTMLSignature
	IdentityFieldMayDelete
)

// IdentitySchema declares Identity's required properties.
var IdentitySchema = orm.Schema{
	IdentityFieldName:  {MaxLength: 255},
	IdentityFieldEmail: {Required: true, Indexed: true},
}

// Identity is a sending identity: JMAP's Identity object.
type Identity struct {
	base
}

func NewIdentity(id ids.JMAPId) *Identity {
	return &Identity{base: newBase(id)}
}

func (i *Identity) Collection() ids.Collection { return ids.CollectionIdentity }

func (i *Identity) SetName(name string) *Identity {
	i.obj.SetText(IdentityFieldName, name)
	return i
}

func (i *Identity) SetEmail(email string) *Identity {
	i.obj.SetText(IdentityFieldEmail, email)
	return i
}

func (i *Identity) SetMayDelete(may bool) *Identity {
	i.obj.SetBool(IdentityFieldMayDelete, may)
	return i
}

func (i *Identity) GetBlobs() [][32]byte { return nil }

package schema

import (
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/orm"
)

const (
	PrincipalFieldName orm.FieldId = iota + 1
	PrincipalFieldType
	PrincipalFieldEmail
	PrincipalFieldDescription
	PrincipalFieldQuota
)

// PrincipalSchema declares Principal's required/indexed properties.
var PrincipalSchema = orm.Schema{
	PrincipalFieldName:  {Required: true, Indexed: true},
	PrincipalFieldType:  {Required: true, Indexed: true},
	PrincipalFieldEmail: {Indexed: true},
}

// Principal is a directory entry (individual, group, or resource) used
// for sharing and ACL grants.
type Principal struct {
	base
}

func NewPrincipal(id ids.JMAPId) *Principal {
	return &Principal{base: newBase(id)}
}

func (p *Principal) Collection() ids.Collection { return ids.CollectionPrincipal }

func (p *Principal) SetName(name string) *Principal {
	p.obj.SetText(PrincipalFieldName, name)
	return p
}

func (p *Principal) SetType(kind string) *Principal {
	p.obj.SetText(PrincipalFieldType, kind)
	return p
}

func (p *Principal) SetEmail(email string) *Principal {
	p.obj.SetText(PrincipalFieldEmail, email)
	return p
}

func (p *Principal) SetQuota(bytes int64) *Principal {
	p.obj.SetNumber(PrincipalFieldQuota, bytes)
	return p
}

func (p *Principal) GetBlobs() [][32]byte { return nil }

package schema

import (
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/orm"
)

const (
	PushSubscriptionFieldDeviceClientId orm.FieldId = iota + 1
	PushSubscriptionFieldUrl
	PushSubscriptionFieldTypes
	PushSubscriptionFieldExpires
	PushSubscriptionFieldVerificationCode
	PushSubscriptionFieldIsVerified
)

// PushSubscriptionSchema declares PushSubscription's required
// properties. The stored document is the durable record a client's
// PushSubscription/get can return; the live delivery state (retry
// backoff, in-memory verification code) is owned by pkg/statechange,
// not by this schema.
var PushSubscriptionSchema = orm.Schema{
	PushSubscriptionFieldUrl:     {Required: true},
	PushSubscriptionFieldExpires: {Indexed: true},
}

// PushSubscription is a registered push endpoint: JMAP's
// PushSubscription object.
type PushSubscription struct {
	base
}

func NewPushSubscription(id ids.JMAPId) *PushSubscription {
	return &PushSubscription{base: newBase(id)}
}

func (p *PushSubscription) Collection() ids.Collection { return ids.CollectionPushSubscription }

func (p *PushSubscription) SetURL(url string) *PushSubscription {
	p.obj.SetText(PushSubscriptionFieldUrl, url)
	return p
}

func (p *PushSubscription) SetExpires(unixSeconds int64) *PushSubscription {
	p.obj.SetNumber(PushSubscriptionFieldExpires, unixSeconds)
	return p
}

func (p *PushSubscription) SetVerified(verified bool) *PushSubscription {
	p.obj.SetBool(PushSubscriptionFieldIsVerified, verified)
	return p
}

func (p *PushSubscription) GetBlobs() [][32]byte { return nil }

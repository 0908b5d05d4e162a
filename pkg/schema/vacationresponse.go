package schema

import (
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/orm"
)

const (
	VacationResponseFieldIsEnabled orm.FieldId = iota + 1
	VacationResponseFieldFromDate
	VacationResponseFieldToDate
	VacationResponseFieldSubject
	VacationResponseFieldTextBody
	VacationResponseFieldHTMLBody
)

// VacationResponseSchema declares VacationResponse's properties. It is
// a singleton per account, enforced by the method
// layer pinning its JMAPId to "singleton" rather than by this schema.
var VacationResponseSchema = orm.Schema{
	VacationResponseFieldSubject: {MaxLength: 998},
}

// VacationResponse is the account's autoresponder configuration.
type VacationResponse struct {
	base
}

func NewVacationResponse(id ids.JMAPId) *VacationResponse {
	return &VacationResponse{base: newBase(id)}
}

func (v *VacationResponse) Collection() ids.Collection { return ids.CollectionVacationResponse }

func (v *VacationResponse) SetEnabled(enabled bool) *VacationResponse {
	v.obj.SetBool(VacationResponseFieldIsEnabled, enabled)
	return v
}

func (v *VacationResponse) SetSubject(subject string) *VacationResponse {
	v.obj.SetText(VacationResponseFieldSubject, subject)
	return v
}

func (v *VacationResponse) SetTextBody(body string) *VacationResponse {
	v.obj.SetText(VacationResponseFieldTextBody, body)
	return v
}

func (v *VacationResponse) GetBlobs() [][32]byte { return nil }

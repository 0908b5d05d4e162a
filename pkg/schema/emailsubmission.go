package schema

import (
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/orm"
)

const (
	EmailSubmissionFieldIdentityId orm.FieldId = iota + 1
	EmailSubmissionFieldEmailId
	EmailSubmissionFieldThreadId
	EmailSubmissionFieldUndoStatus
	EmailSubmissionFieldSendAt
	EmailSubmissionFieldDeliveryStatus
)

// EmailSubmissionSchema declares EmailSubmission's required/indexed
// properties.
var EmailSubmissionSchema = orm.Schema{
	EmailSubmissionFieldIdentityId: {Required: true, Indexed: true},
	EmailSubmissionFieldEmailId:    {Required: true, Indexed: true},
	EmailSubmissionFieldSendAt:     {Indexed: true},
	EmailSubmissionFieldUndoStatus: {Indexed: true},
}

// EmailSubmission is a queued or sent outgoing message: JMAP's
// EmailSubmission object.
type EmailSubmission struct {
	base
}

func NewEmailSubmission(id ids.JMAPId) *EmailSubmission {
	return &EmailSubmission{base: newBase(id)}
}

func (s *EmailSubmission) Collection() ids.Collection { return ids.CollectionEmailSubmission }

func (s *EmailSubmission) SetIdentity(doc ids.DocumentId) *EmailSubmission {
	s.obj.SetNumber(EmailSubmissionFieldIdentityId, int64(doc))
	return s
}

func (s *EmailSubmission) SetEmail(doc ids.DocumentId) *EmailSubmission {
	s.obj.SetNumber(EmailSubmissionFieldEmailId, int64(doc))
	return s
}

func (s *EmailSubmission) SetUndoStatus(status string) *EmailSubmission {
	s.obj.SetText(EmailSubmissionFieldUndoStatus, status)
	return s
}

func (s *EmailSubmission) SetSendAt(unixSeconds int64) *EmailSubmission {
	s.obj.SetNumber(EmailSubmissionFieldSendAt, unixSeconds)
	return s
}

func (s *EmailSubmission) GetBlobs() [][32]byte { return nil }

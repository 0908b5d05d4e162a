package schema

import (
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/orm"
)

const (
	SieveScriptFieldName orm.FieldId = iota + 1
	SieveScriptFieldBlobHash
	SieveScriptFieldIsActive
)

// SieveScriptSchema declares SieveScript's required properties.
var SieveScriptSchema = orm.Schema{
	SieveScriptFieldName:     {Required: true, MaxLength: 255, Indexed: true},
	SieveScriptFieldBlobHash: {Required: true},
}

// SieveScript is a stored mail-filtering script; its source text is
// held in the blob store, not inline.
type SieveScript struct {
	base
}

func NewSieveScript(id ids.JMAPId) *SieveScript {
	return &SieveScript{base: newBase(id)}
}

func (s *SieveScript) Collection() ids.Collection { return ids.CollectionSieveScript }

func (s *SieveScript) SetName(name string) *SieveScript {
	s.obj.SetText(SieveScriptFieldName, name)
	return s
}

func (s *SieveScript) SetActive(active bool) *SieveScript {
	s.obj.SetBool(SieveScriptFieldIsActive, active)
	return s
}

func (s *SieveScript) SetBlobHash(hash [32]byte) *SieveScript {
	s.obj.SetRaw(SieveScriptFieldBlobHash, hash[:])
	return s
}

func (s *SieveScript) BlobHash() ([32]byte, bool) {
	var hash [32]byte
	v, ok := s.obj.Properties[SieveScriptFieldBlobHash]
	if !ok || len(v.Raw) != 32 {
		return hash, false
	}
	copy(hash[:], v.Raw)
	return hash, true
}

// GetBlobs implements RaftObject: a SieveScript owns the blob holding
// its compiled/source text.
func (s *SieveScript) GetBlobs() [][32]byte {
	if hash, ok := s.BlobHash(); ok {
		return [][32]byte{hash}
	}
	return nil
}

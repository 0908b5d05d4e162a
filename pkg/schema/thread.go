package schema

import (
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/orm"
)

// ThreadFieldMailIds is the only field a Thread carries: tag membership
// listing the Mail documents it groups. Mail references its Thread by
// id, and Thread's membership is maintained by the method layer rather
// than a stored back-reference, so no pointer cycle exists.
const ThreadFieldMailIds orm.FieldId = 1

// ThreadSchema declares Thread's (sole) tagged field.
var ThreadSchema = orm.Schema{
	ThreadFieldMailIds: {Tagged: true},
}

// Thread carries no properties of its own. It exists as a type so the
// collection enum and query_store mapper stay total.
type Thread struct {
	base
}

func NewThread(id ids.JMAPId) *Thread {
	return &Thread{base: newBase(id)}
}

func (t *Thread) Collection() ids.Collection { return ids.CollectionThread }

func (t *Thread) GetBlobs() [][32]byte { return nil }

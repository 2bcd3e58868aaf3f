package tuple

import (
	"strconv"

	"github.com/go-faster/jx"
)

// EncodeJSON writes t as an object keyed by field names. Unnamed fields are
// keyed by their position.
func (t *Tuple) EncodeJSON(e *jx.Encoder) {
	e.ObjStart()
	for i, f := range t.fields {
		name := t.desc.items[i].Name
		if name == "" {
			name = strconv.Itoa(i)
		}
		e.FieldStart(name)

		switch v := f.(type) {
		case IntField:
			e.Int32(int32(v))
		case StringField:
			e.Str(string(v))
		default:
			e.Str(f.String())
		}
	}
	e.ObjEnd()
}

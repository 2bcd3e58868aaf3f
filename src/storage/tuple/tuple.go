package tuple

import (
	"strings"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
	"github.com/Blackdeer1524/HeapDB/src/pkg/optional"
)

var ErrFieldMismatch = errors.New("field does not match schema")

type Tuple struct {
	desc   *Desc
	fields []Field
	rid    optional.Optional[common.RecordID]
}

func New(desc *Desc, fields ...Field) (*Tuple, error) {
	if len(fields) != desc.NumFields() {
		return nil, errors.Wrapf(
			ErrFieldMismatch,
			"got %d fields, schema has %d",
			len(fields),
			desc.NumFields(),
		)
	}
	for i, f := range fields {
		if f == nil || f.Type() != desc.items[i].Type {
			return nil, errors.Wrapf(ErrFieldMismatch, "field %d", i)
		}
	}

	return &Tuple{
		desc:   desc,
		fields: append([]Field(nil), fields...),
		rid:    optional.None[common.RecordID](),
	}, nil
}

// Parse builds a tuple from textual values, one per schema field.
func Parse(desc *Desc, values []string) (*Tuple, error) {
	if len(values) != desc.NumFields() {
		return nil, errors.Wrapf(
			ErrFieldMismatch,
			"got %d values, schema has %d",
			len(values),
			desc.NumFields(),
		)
	}

	fields := make([]Field, len(values))
	for i, v := range values {
		f, err := desc.items[i].Type.ParseField(v)
		if err != nil {
			return nil, err
		}
		fields[i] = f
	}
	return New(desc, fields...)
}

func (t *Tuple) Desc() *Desc {
	return t.desc
}

func (t *Tuple) Field(i int) Field {
	return t.fields[i]
}

func (t *Tuple) Fields() []Field {
	return append([]Field(nil), t.fields...)
}

func (t *Tuple) RecordID() optional.Optional[common.RecordID] {
	return t.rid
}

func (t *Tuple) SetRecordID(rid common.RecordID) {
	t.rid = optional.Some(rid)
}

func (t *Tuple) ClearRecordID() {
	t.rid.Clear()
}

// Serialize writes the tuple into dst, which must be at least Desc().Size()
// bytes long.
func (t *Tuple) Serialize(dst []byte) {
	off := 0
	for _, f := range t.fields {
		f.Serialize(dst[off:])
		off += f.Type().Len()
	}
}

// Deserialize reads one tuple of the given schema from the head of data.
func Deserialize(desc *Desc, data []byte) (*Tuple, error) {
	if len(data) < desc.Size() {
		return nil, errors.Errorf("tuple needs %d bytes, got %d", desc.Size(), len(data))
	}

	fields := make([]Field, desc.NumFields())
	off := 0
	for i, it := range desc.items {
		f, err := it.Type.readField(data[off:])
		if err != nil {
			return nil, errors.Wrapf(err, "field %d", i)
		}
		fields[i] = f
		off += it.Type.Len()
	}

	return &Tuple{
		desc:   desc,
		fields: fields,
		rid:    optional.None[common.RecordID](),
	}, nil
}

// Equals compares schemas and field values; record ids are ignored.
func (t *Tuple) Equals(other *Tuple) bool {
	if !t.desc.Equals(other.desc) {
		return false
	}
	for i := range t.fields {
		if !t.fields[i].Equals(other.fields[i]) {
			return false
		}
	}
	return true
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.fields))
	for i, f := range t.fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, "\t")
}

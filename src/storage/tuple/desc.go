package tuple

import (
	"strings"

	"github.com/go-faster/errors"
)

var ErrNoSuchField = errors.New("no such field")

type Item struct {
	Type Type
	// may be empty
	Name string
}

func (i Item) String() string {
	return i.Name + "(" + i.Type.String() + ")"
}

// Desc describes the schema of a tuple. Tuples of one Desc all have the same
// serialized size.
type Desc struct {
	items []Item
}

// NewDesc builds a schema from field types and names. names may be nil for
// anonymous fields; otherwise it must be as long as types.
func NewDesc(types []Type, names []string) (*Desc, error) {
	if len(types) == 0 {
		return nil, errors.New("schema must have at least one field")
	}
	if names != nil && len(names) != len(types) {
		return nil, errors.Errorf("got %d field names for %d types", len(names), len(types))
	}

	items := make([]Item, len(types))
	for i, t := range types {
		if t.Len() == 0 {
			return nil, errors.Wrapf(ErrUnknownType, "field %d", i)
		}
		items[i].Type = t
		if names != nil {
			items[i].Name = names[i]
		}
	}
	return &Desc{items: items}, nil
}

func (d *Desc) NumFields() int {
	return len(d.items)
}

func (d *Desc) Items() []Item {
	return append([]Item(nil), d.items...)
}

func (d *Desc) FieldType(i int) (Type, error) {
	if i < 0 || i >= len(d.items) {
		return 0, errors.Wrapf(ErrNoSuchField, "index %d", i)
	}
	return d.items[i].Type, nil
}

func (d *Desc) FieldName(i int) (string, error) {
	if i < 0 || i >= len(d.items) {
		return "", errors.Wrapf(ErrNoSuchField, "index %d", i)
	}
	return d.items[i].Name, nil
}

// FieldNameToIndex returns the index of the first field named name.
func (d *Desc) FieldNameToIndex(name string) (int, error) {
	if name == "" {
		return 0, errors.Wrap(ErrNoSuchField, "empty name")
	}
	for i, it := range d.items {
		if it.Name == name {
			return i, nil
		}
	}
	return 0, errors.Wrapf(ErrNoSuchField, "%q", name)
}

// Size is the number of bytes one tuple of this schema occupies.
func (d *Desc) Size() int {
	size := 0
	for _, it := range d.items {
		size += it.Type.Len()
	}
	return size
}

// Equals compares field types only; names are ignored.
func (d *Desc) Equals(other *Desc) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.items) != len(other.items) {
		return false
	}
	for i := range d.items {
		if d.items[i].Type != other.items[i].Type {
			return false
		}
	}
	return true
}

// Merge concatenates the fields of a and b.
func Merge(a, b *Desc) *Desc {
	items := make([]Item, 0, len(a.items)+len(b.items))
	items = append(items, a.items...)
	items = append(items, b.items...)
	return &Desc{items: items}
}

func (d *Desc) String() string {
	parts := make([]string, len(d.items))
	for i, it := range d.items {
		parts[i] = it.String()
	}
	return strings.Join(parts, ", ")
}

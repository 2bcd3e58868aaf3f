package tuple

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
)

// StringMaxLen is the number of payload bytes a string field occupies on a
// page. Longer strings are truncated.
const StringMaxLen = 128

type Type uint8

const (
	IntType Type = iota + 1
	StringType
)

var ErrUnknownType = errors.New("unknown field type")

// Len is the number of bytes a field of this type takes in a tuple slot.
func (t Type) Len() int {
	switch t {
	case IntType:
		return 4
	case StringType:
		return 4 + StringMaxLen
	}
	return 0
}

func (t Type) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown(" + strconv.Itoa(int(t)) + ")"
}

func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int":
		return IntType, nil
	case "string":
		return StringType, nil
	}
	return 0, errors.Wrapf(ErrUnknownType, "%q", s)
}

// ParseField converts a textual value into a field of this type.
func (t Type) ParseField(s string) (Field, error) {
	switch t {
	case IntType:
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "parse int field %q", s)
		}
		return IntField(v), nil
	case StringType:
		return StringField(s), nil
	}
	return nil, errors.Wrapf(ErrUnknownType, "%d", t)
}

// readField decodes a field of this type from the head of data.
func (t Type) readField(data []byte) (Field, error) {
	if len(data) < t.Len() {
		return nil, errors.Errorf("field %s needs %d bytes, got %d", t, t.Len(), len(data))
	}

	switch t {
	case IntType:
		return IntField(int32(binary.BigEndian.Uint32(data))), nil //nolint:gosec
	case StringType:
		n := binary.BigEndian.Uint32(data)
		if n > StringMaxLen {
			return nil, errors.Errorf("string field length %d exceeds %d", n, StringMaxLen)
		}
		return StringField(data[4 : 4+n]), nil
	}
	return nil, errors.Wrapf(ErrUnknownType, "%d", t)
}

type Field interface {
	Type() Type
	// Serialize writes exactly Type().Len() bytes into dst.
	Serialize(dst []byte)
	Equals(other Field) bool
	String() string
}

type IntField int32

var _ Field = IntField(0)

func (f IntField) Type() Type { return IntType }

func (f IntField) Serialize(dst []byte) {
	binary.BigEndian.PutUint32(dst, uint32(f)) //nolint:gosec
}

func (f IntField) Equals(other Field) bool {
	o, ok := other.(IntField)
	return ok && o == f
}

func (f IntField) String() string {
	return strconv.FormatInt(int64(f), 10)
}

type StringField string

var _ Field = StringField("")

func (f StringField) Type() Type { return StringType }

func (f StringField) Serialize(dst []byte) {
	s := string(f)
	if len(s) > StringMaxLen {
		s = s[:StringMaxLen]
	}

	binary.BigEndian.PutUint32(dst, uint32(len(s))) //nolint:gosec
	payload := dst[4 : 4+StringMaxLen]
	n := copy(payload, s)
	clear(payload[n:])
}

func (f StringField) Equals(other Field) bool {
	o, ok := other.(StringField)
	return ok && o == f
}

func (f StringField) String() string {
	return string(f)
}

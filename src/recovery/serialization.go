package recovery

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/go-faster/errors"
	"github.com/golang/snappy"
)

var ErrCorruptedRecord = errors.New("corrupted log record")

// Every record is framed as
//
//	| payload length: uint32 | payload |
//
// with the payload
//
//	| tag: 1 | lsn: 8 | txn: 8 | file: 8 | page: 8 |
//	| before length: 4 | snappy(before) | after length: 4 | snappy(after) |
//
// All integers are big-endian.

const frameHeaderSize = 4

func (r *Record) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(r.Type))

	if err := binary.Write(buf, binary.BigEndian, r.LSN); err != nil {
		return nil, err
	}

	if err := binary.Write(buf, binary.BigEndian, r.TxnID); err != nil {
		return nil, err
	}

	pageData, err := r.PageID.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf.Write(pageData)

	for _, image := range [][]byte{r.Before, r.After} {
		compressed := snappy.Encode(nil, image)

		//nolint:gosec
		if err := binary.Write(buf, binary.BigEndian, uint32(len(compressed))); err != nil {
			return nil, err
		}
		buf.Write(compressed)
	}

	return buf.Bytes(), nil
}

func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return errors.Wrap(ErrCorruptedRecord, "empty payload")
	}

	r.Type = LogRecordTypeTag(data[0])
	if r.Type != TypeUpdate {
		return errors.Wrapf(ErrCorruptedRecord, "unknown type tag %x", data[0])
	}

	reader := bytes.NewReader(data[1:])
	if err := binary.Read(reader, binary.BigEndian, &r.LSN); err != nil {
		return errors.Wrap(ErrCorruptedRecord, err.Error())
	}

	if err := binary.Read(reader, binary.BigEndian, &r.TxnID); err != nil {
		return errors.Wrap(ErrCorruptedRecord, err.Error())
	}

	if err := binary.Read(reader, binary.BigEndian, &r.PageID); err != nil {
		return errors.Wrap(ErrCorruptedRecord, err.Error())
	}

	var err error
	if r.Before, err = readImage(reader); err != nil {
		return errors.Wrap(err, "before image")
	}

	if r.After, err = readImage(reader); err != nil {
		return errors.Wrap(err, "after image")
	}

	if reader.Len() != 0 {
		return errors.Wrapf(ErrCorruptedRecord, "%d trailing bytes", reader.Len())
	}
	return nil
}

func readImage(reader *bytes.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return nil, errors.Wrap(ErrCorruptedRecord, err.Error())
	}

	if int64(length) > int64(reader.Len()) {
		return nil, errors.Wrapf(ErrCorruptedRecord, "image length %d", length)
	}

	compressed := make([]byte, length)
	if _, err := io.ReadFull(reader, compressed); err != nil {
		return nil, errors.Wrap(ErrCorruptedRecord, err.Error())
	}

	image, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, errors.Wrap(ErrCorruptedRecord, err.Error())
	}
	return image, nil
}

func appendFrame(dst []byte, r *Record) ([]byte, error) {
	payload, err := r.MarshalBinary()
	if err != nil {
		return nil, err
	}

	//nolint:gosec
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...), nil
}

// readFrame decodes the next framed record. It returns io.EOF when the
// reader is exhausted exactly at a frame boundary and io.ErrUnexpectedEOF on
// a torn tail.
func readFrame(rd io.Reader) (Record, int64, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(rd, header[:]); err != nil {
		return Record{}, 0, err
	}

	payload := make([]byte, binary.BigEndian.Uint32(header[:]))
	if _, err := io.ReadFull(rd, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Record{}, 0, err
	}

	var r Record
	if err := r.UnmarshalBinary(payload); err != nil {
		return Record{}, 0, err
	}
	return r, int64(frameHeaderSize + len(payload)), nil
}

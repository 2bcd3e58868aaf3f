package common

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

type FileID uint64
type PageID uint64

/* a monotonically increasing counter. It is guaranteed to be unique between
 * transactions of one process. Zero is never handed out. */
type TxnID uint64

const NilTxnID TxnID = 0

type PageIdentity struct {
	FileID FileID
	PageID PageID
}

func (p PageIdentity) String() string {
	return fmt.Sprintf("%d:%d", p.FileID, p.PageID)
}

func (p PageIdentity) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, p.FileID)
	_ = binary.Write(buf, binary.BigEndian, p.PageID)

	return buf.Bytes(), nil
}

func (p *PageIdentity) UnmarshalBinary(data []byte) error {
	rd := bytes.NewReader(data)
	if err := binary.Read(rd, binary.BigEndian, &p.FileID); err != nil {
		return err
	}

	return binary.Read(rd, binary.BigEndian, &p.PageID)
}

// RecordID locates a tuple: the page it lives on and its slot there.
type RecordID struct {
	FileID  FileID
	PageID  PageID
	SlotNum uint16
}

func (r RecordID) PageIdentity() PageIdentity {
	return PageIdentity{
		FileID: r.FileID,
		PageID: r.PageID,
	}
}

func (r RecordID) String() string {
	return fmt.Sprintf("%d:%d:%d", r.FileID, r.PageID, r.SlotNum)
}

package bufferpool

import (
	"github.com/stretchr/testify/mock"

	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
	"github.com/Blackdeer1524/HeapDB/src/storage"
	"github.com/Blackdeer1524/HeapDB/src/storage/tuple"
)

type MockLogFile struct {
	mock.Mock
}

var _ LogFile = &MockLogFile{}

func (m *MockLogFile) LogWrite(txnID common.TxnID, before, after storage.Page) error {
	args := m.Called(txnID, before, after)
	return args.Error(0)
}

func (m *MockLogFile) Force() error {
	args := m.Called()
	return args.Error(0)
}

type MockCatalog struct {
	mock.Mock
}

var _ storage.Catalog = &MockCatalog{}

func (m *MockCatalog) GetDatabaseFile(fileID common.FileID) (storage.DbFile, error) {
	args := m.Called(fileID)
	file, _ := args.Get(0).(storage.DbFile)
	return file, args.Error(1)
}

func (m *MockCatalog) GetTupleDesc(fileID common.FileID) (*tuple.Desc, error) {
	args := m.Called(fileID)
	desc, _ := args.Get(0).(*tuple.Desc)
	return desc, args.Error(1)
}

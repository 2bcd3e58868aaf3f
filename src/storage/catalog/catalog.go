package catalog

import (
	"slices"
	"sync"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
	"github.com/Blackdeer1524/HeapDB/src/storage"
	"github.com/Blackdeer1524/HeapDB/src/storage/tuple"
)

var ErrTableNotFound = errors.New("table not found")

type table struct {
	file       storage.DbFile
	name       string
	primaryKey string
}

// Catalog maps table names and file ids to the files backing them.
type Catalog struct {
	mu     sync.RWMutex
	byID   map[common.FileID]*table
	byName map[string]*table
}

var _ storage.Catalog = &Catalog{}

func New() *Catalog {
	return &Catalog{
		byID:   map[common.FileID]*table{},
		byName: map[string]*table{},
	}
}

// AddTable registers file under name. A table with the same name or the same
// file id is replaced.
func (c *Catalog) AddTable(file storage.DbFile, name string, primaryKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.byName[name]; ok {
		delete(c.byID, old.file.ID())
	}
	if old, ok := c.byID[file.ID()]; ok {
		delete(c.byName, old.name)
	}

	t := &table{file: file, name: name, primaryKey: primaryKey}
	c.byID[file.ID()] = t
	c.byName[name] = t
}

func (c *Catalog) lookup(fileID common.FileID) (*table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.byID[fileID]
	if !ok {
		return nil, errors.Wrapf(ErrTableNotFound, "file id %d", fileID)
	}
	return t, nil
}

func (c *Catalog) GetTableID(name string) (common.FileID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.byName[name]
	if !ok {
		return 0, errors.Wrapf(ErrTableNotFound, "name %q", name)
	}
	return t.file.ID(), nil
}

func (c *Catalog) GetDatabaseFile(fileID common.FileID) (storage.DbFile, error) {
	t, err := c.lookup(fileID)
	if err != nil {
		return nil, err
	}
	return t.file, nil
}

func (c *Catalog) GetTupleDesc(fileID common.FileID) (*tuple.Desc, error) {
	t, err := c.lookup(fileID)
	if err != nil {
		return nil, err
	}
	return t.file.TupleDesc(), nil
}

func (c *Catalog) PrimaryKey(fileID common.FileID) (string, error) {
	t, err := c.lookup(fileID)
	if err != nil {
		return "", err
	}
	return t.primaryKey, nil
}

func (c *Catalog) TableName(fileID common.FileID) (string, error) {
	t, err := c.lookup(fileID)
	if err != nil {
		return "", err
	}
	return t.name, nil
}

// TableNames returns the registered names in lexical order.
func (c *Catalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (c *Catalog) TableIDs() []common.FileID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]common.FileID, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.byID)
	clear(c.byName)
}

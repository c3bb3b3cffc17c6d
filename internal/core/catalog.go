package core

import (
	"fmt"
	"sync"
)

// TableCatalog is the in-memory system catalog: a thread-safe registry
// mapping table names and ids to their backing file and schema (spec.md
// §9 treats the catalog as ambient state rather than a B+-tree of its
// own).
type TableCatalog struct {
	mu      sync.RWMutex
	byID    map[int64]DBFile
	descByID map[int64]*TupleDesc
	nameToID map[string]int64
}

func NewTableCatalog() *TableCatalog {
	return &TableCatalog{
		byID:     make(map[int64]DBFile),
		descByID: make(map[int64]*TupleDesc),
		nameToID: make(map[string]int64),
	}
}

var _ Catalog = (*TableCatalog)(nil)

// RegisterTable adds (or replaces) a table's backing file and schema
// under the given name.
func (c *TableCatalog) RegisterTable(name string, file DBFile, desc *TupleDesc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := file.TableID()
	c.byID[id] = file
	c.descByID[id] = desc
	c.nameToID[name] = id
}

func (c *TableCatalog) GetFile(tableID int64) (DBFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.byID[tableID]
	if !ok {
		return nil, fmt.Errorf("catalog: table %d: %w", tableID, ErrNotFound)
	}
	return f, nil
}

func (c *TableCatalog) GetTupleDesc(tableID int64) (*TupleDesc, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.descByID[tableID]
	if !ok {
		return nil, fmt.Errorf("catalog: table %d: %w", tableID, ErrNotFound)
	}
	return d, nil
}

// TableIDByName looks up a registered table's id by name.
func (c *TableCatalog) TableIDByName(name string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.nameToID[name]
	if !ok {
		return 0, fmt.Errorf("catalog: table %q: %w", name, ErrNotFound)
	}
	return id, nil
}

// TableNames returns every registered table name.
func (c *TableCatalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.nameToID))
	for n := range c.nameToID {
		names = append(names, n)
	}
	return names
}

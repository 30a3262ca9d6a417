// catalog holds the schema of every table and index. The catalog is rebuilt
// from the schema table whenever a statement changes the schema and is read
// by the planner when binding names.
package catalog

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

const (
	// SchemaTableName is the name of the table holding schema objects.
	SchemaTableName = "relq_schema"
	// SchemaRootPage is the root page of the schema table. It doubles as the
	// lock block for schema changes.
	SchemaRootPage = 1
)

// Object types stored in the schema table.
const (
	ObjectTable = "table"
	ObjectIndex = "index"
)

var one = decimal.NewFromInt(1)

// Column is one column definition of a table.
type Column struct {
	Name string   `json:"name"`
	Type DataType `json:"type"`
	// Size is the declared length for character and binary types or the
	// precision for DECIMAL. Zero means unbounded.
	Size int `json:"size,omitempty"`
	// Scale is the declared scale for DECIMAL.
	Scale      int  `json:"scale,omitempty"`
	NotNull    bool `json:"notNull,omitempty"`
	PrimaryKey bool `json:"primaryKey,omitempty"`
	Unique     bool `json:"unique,omitempty"`
	Identity   bool `json:"identity,omitempty"`
	// Default is the SQL text of the default expression.
	Default string `json:"default,omitempty"`
}

// Index is an index B-tree over one or more columns of a table.
type Index struct {
	Name  string `json:"name"`
	Table string `json:"table"`
	// Columns are ordinals into the table's columns.
	Columns []int `json:"columns"`
	Unique  bool  `json:"unique,omitempty"`
	Primary bool  `json:"primary,omitempty"`
	// RootPage is the root page of the index B-tree.
	RootPage int `json:"-"`
}

// Table describes a table and the indexes over it.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	// Checks holds the SQL text of each CHECK constraint.
	Checks []string `json:"checks,omitempty"`
	// RowIDColumn is the ordinal of the column stored as the B-tree key, or -1
	// when the rowid is hidden. A rowid column acts as the identity index of
	// the table.
	RowIDColumn int `json:"rowIdColumn"`
	// RootPage is the root page of the table B-tree. It is also the block
	// locked when the table is read or written.
	RootPage int      `json:"-"`
	Indexes  []*Index `json:"-"`
}

// ColumnIndex returns the ordinal of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	return slices.IndexFunc(t.Columns, func(c Column) bool {
		return strings.EqualFold(c.Name, name)
	})
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	ret := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		ret[i] = c.Name
	}
	return ret
}

// IndexOn returns the index whose first column is col, preferring unique
// indexes. ok is false when no index leads with col.
func (t *Table) IndexOn(col int) (*Index, bool) {
	var found *Index
	for _, idx := range t.Indexes {
		if idx.Columns[0] != col {
			continue
		}
		if found == nil || (idx.Unique && !found.Unique) {
			found = idx
		}
	}
	return found, found != nil
}

// Object is a row of the schema table.
type Object struct {
	// ObjectType is table or index.
	ObjectType string `json:"objectType"`
	// Name is the name of the object.
	Name string `json:"name"`
	// TableName is the table the object belongs to.
	TableName string `json:"tableName"`
	// RootPageNumber is the root page of the table or index B-tree.
	RootPageNumber int `json:"rootPageNumber"`
	// JSONSchema is the table or index definition encoded as JSON.
	JSONSchema string `json:"jsonSchema"`
}

// Catalog holds information about the database schema. It is safe for
// concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	tables  map[string]*Table
	indexes map[string]*Index
	// version handles concurrency control when the planner prepares statements.
	// Statements being run by the executor have their version checked with the
	// current catalog once the schema block is locked. If the version is out of
	// date the statement is planned again and re-executed.
	version string
}

func NewCatalog() *Catalog {
	c := &Catalog{
		tables:  map[string]*Table{},
		indexes: map[string]*Index{},
	}
	c.setNewVersion()
	return c
}

// SchemaTable describes the schema table itself so it can be queried like any
// other table.
func SchemaTable() *Table {
	return &Table{
		Name: SchemaTableName,
		Columns: []Column{
			{Name: "id", Type: TypeBigInt, PrimaryKey: true},
			{Name: "type", Type: TypeText},
			{Name: "name", Type: TypeText},
			{Name: "table_name", Type: TypeText},
			{Name: "rootpage", Type: TypeBigInt},
			{Name: "schema", Type: TypeText},
		},
		RowIDColumn: 0,
		RootPage:    SchemaRootPage,
	}
}

// Table returns the named table.
func (c *Catalog) Table(name string) (*Table, bool) {
	if strings.EqualFold(name, SchemaTableName) {
		return SchemaTable(), true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[strings.ToLower(name)]
	return t, ok
}

// TableExists reports whether the table exists.
func (c *Catalog) TableExists(name string) bool {
	_, ok := c.Table(name)
	return ok
}

// Index returns the named index.
func (c *Catalog) Index(name string) (*Index, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[strings.ToLower(name)]
	return idx, ok
}

// TableNames returns the user table names in sorted order.
func (c *Catalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ret := make([]string, 0, len(c.tables))
	for _, t := range c.tables {
		ret = append(ret, t.Name)
	}
	slices.Sort(ret)
	return ret
}

// GetVersion returns a unique version identifier that is updated when the
// catalog is updated.
func (c *Catalog) GetVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// SetSchema replaces the catalog contents with the objects read from the
// schema table.
func (c *Catalog) SetSchema(objects []Object) error {
	tables := map[string]*Table{}
	indexes := map[string]*Index{}
	for _, o := range objects {
		if o.ObjectType != ObjectTable {
			continue
		}
		t := &Table{}
		if err := json.Unmarshal([]byte(o.JSONSchema), t); err != nil {
			return fmt.Errorf("decode table %s: %w", o.Name, err)
		}
		t.RootPage = o.RootPageNumber
		tables[strings.ToLower(t.Name)] = t
	}
	for _, o := range objects {
		if o.ObjectType != ObjectIndex {
			continue
		}
		idx := &Index{}
		if err := json.Unmarshal([]byte(o.JSONSchema), idx); err != nil {
			return fmt.Errorf("decode index %s: %w", o.Name, err)
		}
		idx.RootPage = o.RootPageNumber
		t, ok := tables[strings.ToLower(idx.Table)]
		if !ok {
			return fmt.Errorf("index %s: %w: %s", idx.Name, ErrTableNotExist, idx.Table)
		}
		t.Indexes = append(t.Indexes, idx)
		indexes[strings.ToLower(idx.Name)] = idx
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = tables
	c.indexes = indexes
	c.setNewVersion()
	return nil
}

func (c *Catalog) setNewVersion() {
	chars := "abcdefghijklmnopqrstuvwxyz"
	v := make([]byte, 16)
	for i := range v {
		v[i] = chars[rand.Intn(len(chars))]
	}
	c.version = string(v)
}

// ToJSON encodes the table definition stored in the schema table.
func (t *Table) ToJSON() (string, error) {
	j, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(j), nil
}

// ToJSON encodes the index definition stored in the schema table.
func (idx *Index) ToJSON() (string, error) {
	j, err := json.Marshal(idx)
	if err != nil {
		return "", err
	}
	return string(j), nil
}

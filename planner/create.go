package planner

import (
	"fmt"
	"strings"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/compiler"
	"github.com/chirst/relq/executor"
)

// createCatalog defines the catalog methods needed by the create planners
type createCatalog interface {
	Table(name string) (*catalog.Table, bool)
	Index(name string) (*catalog.Index, bool)
	GetVersion() string
}

// createPlanner is capable of generating a logical query plan and a physical
// execution plan for a create table statement. The planners within are
// separated by their responsibility.
type createPlanner struct {
	// queryPlanner is responsible for transforming the AST to a table
	// definition. The query planner also performs binding and validation.
	queryPlanner *createQueryPlanner
	// executionPlanner is responsible for wrapping the table definition in a
	// plan the executor can run.
	executionPlanner *createExecutionPlanner
}

// createQueryPlanner converts the AST to a table definition. Along the way it
// validates the statement makes sense with the catalog a process known as
// binding.
type createQueryPlanner struct {
	// catalog contains the schema
	catalog createCatalog
	// stmt contains the AST
	stmt *compiler.CreateStmt
	// create is the planned statement. It is populated by calling QueryPlan.
	create *executor.CreateTable
}

// createExecutionPlanner converts the planned statement to an execution plan.
type createExecutionPlanner struct {
	create        *executor.CreateTable
	executionPlan *executor.Plan
}

// NewCreate creates a planner for the given create statement.
func NewCreate(catalog createCatalog, stmt *compiler.CreateStmt) *createPlanner {
	return &createPlanner{
		queryPlanner: &createQueryPlanner{
			catalog: catalog,
			stmt:    stmt,
		},
		executionPlanner: &createExecutionPlanner{
			executionPlan: executor.NewPlan(
				catalog.GetVersion(),
				stmt.Explain,
				stmt.Params,
				nil,
			),
		},
	}
}

// QueryPlan generates the query plan for the planner.
func (p *createPlanner) QueryPlan() (*QueryPlan, error) {
	qp, err := p.queryPlanner.getQueryPlan()
	if err != nil {
		return nil, err
	}
	p.executionPlanner.create = p.queryPlanner.create
	return qp, nil
}

func (p *createQueryPlanner) getQueryPlan() (*QueryPlan, error) {
	_, tableExists := p.catalog.Table(p.stmt.TableName)
	if p.stmt.IfNotExists && tableExists {
		p.create = &executor.CreateTable{
			Table: &catalog.Table{Name: p.stmt.TableName},
			Noop:  true,
		}
		return newQueryPlan(&createNode{
			objectType: catalog.ObjectTable,
			objectName: p.stmt.TableName,
			noop:       true,
		}, p.stmt.ExplainQueryPlan), nil
	}
	if tableExists {
		return nil, fmt.Errorf("%w: %s", ErrTableExists, p.stmt.TableName)
	}
	table, err := p.tableFrom()
	if err != nil {
		return nil, err
	}
	indexes, err := p.constraintIndexes(table)
	if err != nil {
		return nil, err
	}
	if _, err := bindChecks(p.catalog, table); err != nil {
		return nil, err
	}
	if _, err := bindDefaults(p.catalog, table); err != nil {
		return nil, err
	}
	p.create = &executor.CreateTable{Table: table, Indexes: indexes}
	return newQueryPlan(&createNode{
		objectType: catalog.ObjectTable,
		objectName: table.Name,
		tableName:  table.Name,
	}, p.stmt.ExplainQueryPlan), nil
}

// tableFrom builds the table definition from the column definitions and
// chooses the column stored as the rowid.
func (p *createQueryPlanner) tableFrom() (*catalog.Table, error) {
	table := &catalog.Table{Name: p.stmt.TableName, RowIDColumn: -1}
	for _, cd := range p.stmt.ColDefs {
		if table.ColumnIndex(cd.ColName) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, cd.ColName)
		}
		t, ok := catalog.ParseType(cd.ColType)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownType, cd.ColType)
		}
		identity := cd.Identity || t == catalog.TypeIdentity
		if identity && !t.IsIntegral() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPKColumnType, cd.ColName)
		}
		table.Columns = append(table.Columns, catalog.Column{
			Name:       cd.ColName,
			Type:       t,
			Size:       cd.Size,
			Scale:      cd.Scale,
			NotNull:    cd.NotNull,
			PrimaryKey: cd.PrimaryKey,
			Unique:     cd.Unique,
			Identity:   identity,
			Default:    cd.Default,
		})
		if cd.Check != "" {
			table.Checks = append(table.Checks, cd.Check)
		}
	}
	for _, c := range p.stmt.Constraints {
		if c.Type == compiler.ConstraintCheck {
			table.Checks = append(table.Checks, c.Check)
		}
	}
	if err := p.ensurePrimaryKeyCount(); err != nil {
		return nil, err
	}
	pk, err := p.primaryKeyColumns(table)
	if err != nil {
		return nil, err
	}
	for _, col := range pk {
		table.Columns[col].PrimaryKey = true
	}
	for i, col := range table.Columns {
		if col.Identity {
			if table.RowIDColumn >= 0 {
				return nil, fmt.Errorf("%w: more than one identity column", ErrMoreThanOnePK)
			}
			table.RowIDColumn = i
		}
	}
	if table.RowIDColumn < 0 && len(pk) == 1 && table.Columns[pk[0]].Type.IsIntegral() {
		table.RowIDColumn = pk[0]
	}
	return table, nil
}

// Only one primary key may be declared, either on a column or as a table
// constraint.
func (p *createQueryPlanner) ensurePrimaryKeyCount() error {
	count := 0
	for _, cd := range p.stmt.ColDefs {
		if cd.PrimaryKey {
			count += 1
		}
	}
	for _, c := range p.stmt.Constraints {
		if c.Type == compiler.ConstraintPrimaryKey {
			count += 1
		}
	}
	if count > 1 {
		return ErrMoreThanOnePK
	}
	return nil
}

func (p *createQueryPlanner) primaryKeyColumns(table *catalog.Table) ([]int, error) {
	for i, cd := range p.stmt.ColDefs {
		if cd.PrimaryKey {
			return []int{i}, nil
		}
	}
	for _, c := range p.stmt.Constraints {
		if c.Type == compiler.ConstraintPrimaryKey {
			return columnOrdinals(table, c.Columns)
		}
	}
	return nil, nil
}

// constraintIndexes returns a unique index for each PRIMARY KEY or UNIQUE
// constraint not already enforced by the rowid.
func (p *createQueryPlanner) constraintIndexes(table *catalog.Table) ([]*catalog.Index, error) {
	var ret []*catalog.Index
	add := func(name string, cols []int, primary bool) error {
		if len(cols) == 1 && cols[0] == table.RowIDColumn {
			return nil
		}
		for _, idx := range ret {
			if sameColumns(idx.Columns, cols) {
				idx.Primary = idx.Primary || primary
				return nil
			}
		}
		if name == "" {
			name = fmt.Sprintf("%s_autoindex_%d", table.Name, len(ret)+1)
		}
		if _, exists := p.catalog.Index(name); exists {
			return fmt.Errorf("%w: %s", ErrIndexExists, name)
		}
		ret = append(ret, &catalog.Index{
			Name:    name,
			Table:   table.Name,
			Columns: cols,
			Unique:  true,
			Primary: primary,
		})
		return nil
	}
	pkCols, err := p.primaryKeyColumns(table)
	if err != nil {
		return nil, err
	}
	if len(pkCols) > 0 {
		if err := add(p.constraintName(compiler.ConstraintPrimaryKey), pkCols, true); err != nil {
			return nil, err
		}
	}
	for i, col := range table.Columns {
		if col.Unique {
			if err := add("", []int{i}, false); err != nil {
				return nil, err
			}
		}
	}
	for _, c := range p.stmt.Constraints {
		if c.Type != compiler.ConstraintUnique {
			continue
		}
		cols, err := columnOrdinals(table, c.Columns)
		if err != nil {
			return nil, err
		}
		if err := add(c.Name, cols, false); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func (p *createQueryPlanner) constraintName(t compiler.ConstraintType) string {
	for _, c := range p.stmt.Constraints {
		if c.Type == t {
			return c.Name
		}
	}
	return ""
}

func columnOrdinals(table *catalog.Table, names []string) ([]int, error) {
	ret := make([]int, 0, len(names))
	for _, name := range names {
		i := table.ColumnIndex(name)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s.%s", ErrColumnNotExist, table.Name, name)
		}
		for _, c := range ret {
			if c == i {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, name)
			}
		}
		ret = append(ret, i)
	}
	return ret, nil
}

func sameColumns(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ExecutionPlan returns the execution plan for the planner. Calling QueryPlan
// is not a prerequisite to this method as it will be called by ExecutionPlan
// if needed.
func (p *createPlanner) ExecutionPlan() (*executor.Plan, error) {
	if p.queryPlanner.create == nil {
		if _, err := p.QueryPlan(); err != nil {
			return nil, err
		}
	}
	p.executionPlanner.executionPlan.Stmt = p.executionPlanner.create
	return p.executionPlanner.executionPlan, nil
}

// createIndexPlanner plans CREATE INDEX.
type createIndexPlanner struct {
	catalog       createCatalog
	stmt          *compiler.CreateIndexStmt
	create        *executor.CreateIndex
	executionPlan *executor.Plan
}

// NewCreateIndex creates a planner for the given create index statement.
func NewCreateIndex(catalog createCatalog, stmt *compiler.CreateIndexStmt) *createIndexPlanner {
	return &createIndexPlanner{
		catalog: catalog,
		stmt:    stmt,
		executionPlan: executor.NewPlan(
			catalog.GetVersion(),
			stmt.Explain,
			stmt.Params,
			nil,
		),
	}
}

// QueryPlan generates the query plan for the planner.
func (p *createIndexPlanner) QueryPlan() (*QueryPlan, error) {
	node := &createNode{
		objectType: catalog.ObjectIndex,
		objectName: p.stmt.IndexName,
		tableName:  p.stmt.TableName,
	}
	if _, exists := p.catalog.Index(p.stmt.IndexName); exists {
		if !p.stmt.IfNotExists {
			return nil, fmt.Errorf("%w: %s", ErrIndexExists, p.stmt.IndexName)
		}
		node.noop = true
		p.create = &executor.CreateIndex{Noop: true}
		return newQueryPlan(node, p.stmt.ExplainQueryPlan), nil
	}
	table, ok := p.catalog.Table(p.stmt.TableName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotExist, p.stmt.TableName)
	}
	if strings.EqualFold(table.Name, catalog.SchemaTableName) {
		return nil, fmt.Errorf("%w: %s", ErrReadOnlyTable, table.Name)
	}
	cols, err := columnOrdinals(table, p.stmt.Columns)
	if err != nil {
		return nil, err
	}
	p.create = &executor.CreateIndex{
		Table: table,
		Index: &catalog.Index{
			Name:    p.stmt.IndexName,
			Table:   table.Name,
			Columns: cols,
			Unique:  p.stmt.Unique,
		},
	}
	return newQueryPlan(node, p.stmt.ExplainQueryPlan), nil
}

// ExecutionPlan returns the execution plan for the planner.
func (p *createIndexPlanner) ExecutionPlan() (*executor.Plan, error) {
	if p.create == nil {
		if _, err := p.QueryPlan(); err != nil {
			return nil, err
		}
	}
	p.executionPlan.Stmt = p.create
	return p.executionPlan, nil
}

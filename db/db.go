// db serves as an interface for the database where raw SQL goes in and
// convenient data structures come out. db is intended to be consumed by things
// like a repl (read eval print loop), a program, or a transport protocol
package db

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/compiler"
	"github.com/chirst/relq/executor"
	"github.com/chirst/relq/kv"
	"github.com/chirst/relq/logging"
	"github.com/chirst/relq/metrics"
	"github.com/chirst/relq/planner"
	"github.com/chirst/relq/value"
)

// statementPlanner is implemented by every planner in the planner package.
type statementPlanner interface {
	QueryPlan() (*planner.QueryPlan, error)
	ExecutionPlan() (*executor.Plan, error)
}

// Config configures a DB.
type Config struct {
	// UseMemory keeps the database in memory. Filename is ignored.
	UseMemory bool
	// Filename is the database file name without the .db extension.
	Filename string
	// CacheSize is the number of pages kept in the page cache. Zero uses the
	// pager default.
	CacheSize int
	// LockTimeout bounds how long a statement waits for a table lock. Zero
	// uses kv.DefaultLockTimeout.
	LockTimeout time.Duration
	// Logger receives debug records for every statement. Nil discards them.
	Logger *slog.Logger
}

type DB struct {
	store     *kv.KV
	exec      *executor.Executor
	catalog   *catalog.Catalog
	logger    *slog.Logger
	UseMemory bool
}

func New(cfg Config) (*DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	store, err := kv.New(kv.Config{
		UseMemory:   cfg.UseMemory,
		Filename:    cfg.Filename,
		CacheSize:   cfg.CacheSize,
		LockTimeout: cfg.LockTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	return &DB{
		store:     store,
		exec:      executor.New(store, logger),
		catalog:   store.GetCatalog(),
		logger:    logger,
		UseMemory: cfg.UseMemory,
	}, nil
}

// Close releases the database file.
func (db *DB) Close() error {
	return db.store.Close()
}

// Catalog returns the schema of the database.
func (db *DB) Catalog() *catalog.Catalog {
	return db.catalog
}

// Split separates a script into statements at every semicolon that is not part
// of a literal or comment.
func (db *DB) Split(sql string) ([]string, error) {
	return compiler.Split(sql)
}

// IsTerminated reports whether sql ends with a semicolon so a line based
// client knows the statement is complete.
func (db *DB) IsTerminated(sql string) bool {
	return compiler.IsTerminated(sql)
}

// Execute parses and runs a single statement. args are bound to the parameter
// markers of the statement in order. When the result holds rows the caller
// must close them.
func (db *DB) Execute(sql string, args ...any) executor.ExecuteResult {
	statement, err := compiler.Parse(sql)
	if err != nil {
		return executor.ExecuteResult{Err: err}
	}
	params, err := toParams(args)
	if err != nil {
		return executor.ExecuteResult{Err: err}
	}
	res, _ := db.execute(statement, params, nil)
	db.logger.Debug("executed", "sql", sql, "duration", res.Duration, "error", res.Err)
	return res
}

// execute runs statement with plan, planning it when plan is nil or was built
// against an older catalog. The plan that ran is returned so it can be reused.
func (db *DB) execute(statement compiler.Stmt, params []value.Value, plan *executor.Plan) (executor.ExecuteResult, *executor.Plan) {
	if statement.Base().ExplainQueryPlan {
		return db.explainQueryPlan(statement), nil
	}
	for {
		if plan == nil || plan.Version != db.catalog.GetVersion() {
			p, err := db.getPlannerFor(statement)
			if err != nil {
				return executor.ExecuteResult{Err: err}, nil
			}
			plan, err = p.ExecutionPlan()
			if err != nil {
				return executor.ExecuteResult{Err: err}, nil
			}
		}
		res := db.exec.Execute(plan, params)
		if !errors.Is(res.Err, executor.ErrVersionChanged) {
			return *res, plan
		}
		metrics.PlanRetries.Inc()
		db.logger.Debug("catalog changed during execution, planning again", "version", plan.Version)
		plan = nil
	}
}

func (db *DB) explainQueryPlan(statement compiler.Stmt) executor.ExecuteResult {
	start := time.Now()
	p, err := db.getPlannerFor(statement)
	if err != nil {
		return executor.ExecuteResult{Err: err}
	}
	qp, err := p.QueryPlan()
	if err != nil {
		return executor.ExecuteResult{Err: err}
	}
	return executor.ExecuteResult{
		Text:     qp.ToString(),
		Duration: time.Since(start),
	}
}

func (db *DB) getPlannerFor(statement compiler.Stmt) (statementPlanner, error) {
	switch s := statement.(type) {
	case *compiler.SelectStmt:
		return planner.NewSelect(db.catalog, s), nil
	case *compiler.InsertStmt:
		return planner.NewInsert(db.catalog, s), nil
	case *compiler.UpdateStmt:
		return planner.NewUpdate(db.catalog, s), nil
	case *compiler.DeleteStmt:
		return planner.NewDelete(db.catalog, s), nil
	case *compiler.CreateStmt:
		return planner.NewCreate(db.catalog, s), nil
	case *compiler.CreateIndexStmt:
		return planner.NewCreateIndex(db.catalog, s), nil
	case *compiler.DropStmt:
		return planner.NewDrop(db.catalog, s), nil
	case *compiler.ValidateStmt:
		return planner.NewValidate(db.catalog, s), nil
	}
	return nil, fmt.Errorf("statement not supported: %T", statement)
}

// Stmt is a parsed statement that keeps its plan between executions. A Stmt
// is safe for concurrent use.
type Stmt struct {
	db        *DB
	sql       string
	statement compiler.Stmt
	mu        sync.Mutex
	plan      *executor.Plan
}

// Prepare parses sql once. The statement is planned on first execution and
// planned again whenever the schema changes.
func (db *DB) Prepare(sql string) (*Stmt, error) {
	statement, err := compiler.Parse(sql)
	if err != nil {
		return nil, err
	}
	return &Stmt{db: db, sql: sql, statement: statement}, nil
}

// NumInput is the number of parameter markers in the statement.
func (s *Stmt) NumInput() int {
	return s.statement.Base().Params
}

// Execute runs the prepared statement with args bound to its parameters.
func (s *Stmt) Execute(args ...any) executor.ExecuteResult {
	params, err := toParams(args)
	if err != nil {
		return executor.ExecuteResult{Err: err}
	}
	s.mu.Lock()
	plan := s.plan
	s.mu.Unlock()
	res, plan := s.db.execute(s.statement, params, plan)
	if plan != nil {
		s.mu.Lock()
		s.plan = plan
		s.mu.Unlock()
	}
	s.db.logger.Debug("executed prepared", "sql", s.sql, "duration", res.Duration, "error", res.Err)
	return res
}

func toParams(args []any) ([]value.Value, error) {
	params := make([]value.Value, len(args))
	for i, a := range args {
		v, err := value.FromAny(a)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i+1, err)
		}
		params[i] = v
	}
	return params, nil
}

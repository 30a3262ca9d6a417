package executor

import (
	"time"

	"github.com/chirst/relq/expr"
	"github.com/chirst/relq/pool"
	"github.com/chirst/relq/value"
)

// Transaction is the part of the storage transaction a QueryContext uses to
// bracket an execution with block locks.
type Transaction interface {
	LockTimeout() time.Duration
	Lock(block int, write bool) error
	Unlock(block int, write bool)
	// Flush persists the pages published by the transaction.
	Flush() error
	// Commit forgets the flushed pages of block.
	Commit(block int)
	// Rollback discards changes that are not yet published.
	Rollback()
}

// noCopy makes go vet report copies of the struct embedding it.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// QueryContext is the mutable state of one execution: parameter values, the
// current row of every FROM item, the current group and the blocks the
// execution locks. Contexts are pooled. A context is owned by the goroutine
// holding the Held returned by Lock.
type QueryContext struct {
	noCopy noCopy

	tx     Transaction
	blocks []int
	write  bool
	held   *Held

	params []value.Value
	now    time.Time
	// rows holds the current row of each FROM item by item ID. A nil row is
	// the NULL row of an unmatched outer join.
	rows   [][]value.Value
	rowIDs []int64
	group  *GroupItem
	// parent is the context of the enclosing query for correlated subqueries.
	parent *QueryContext
	root   *QueryContext
	run    *execution
	// cache holds the results of uncorrelated subqueries by ID. Only the root
	// context uses it.
	cache map[int][]value.Value
}

var contexts = pool.New(
	func() *QueryContext {
		return &QueryContext{cache: map[int][]value.Value{}}
	},
	func(c *QueryContext) { c.reset() },
)

// NewQueryContext takes a context from the pool.
func NewQueryContext(params []value.Value) *QueryContext {
	c := contexts.Get()
	c.params = append(c.params[:0], params...)
	c.now = time.Now()
	c.root = c
	return c
}

// Release returns the context to the pool. A locked context is unlocked first.
func (c *QueryContext) Release() {
	if c.held != nil {
		c.held.Unlock()
	}
	contexts.Put(c)
}

func (c *QueryContext) reset() {
	c.tx = nil
	c.blocks = c.blocks[:0]
	c.write = false
	c.held = nil
	clear(c.params)
	c.params = c.params[:0]
	clear(c.rows)
	c.rows = c.rows[:0]
	c.rowIDs = c.rowIDs[:0]
	c.group = nil
	c.parent = nil
	c.root = nil
	c.run = nil
	clear(c.cache)
}

// child returns a context for a subquery of c.
func (c *QueryContext) child() *QueryContext {
	ch := contexts.Get()
	ch.parent = c
	ch.root = c.root
	ch.run = c.run
	return ch
}

// prepare sizes the row slots for a query with n FROM items.
func (c *QueryContext) prepare(n int) {
	clear(c.rows)
	if cap(c.rows) < n {
		c.rows = make([][]value.Value, n)
		c.rowIDs = make([]int64, n)
	}
	c.rows = c.rows[:n]
	c.rowIDs = c.rowIDs[:n]
	c.group = nil
}

// Init sets the transaction and the blocks to lock. Blocks may repeat, each
// is locked once. readOnly selects read locks instead of write locks.
func (c *QueryContext) Init(tx Transaction, blocks []int, readOnly bool) {
	c.tx = tx
	c.write = !readOnly
	c.blocks = c.blocks[:0]
	last := -1
	for {
		next := -1
		for _, b := range blocks {
			if b > last && (next < 0 || b < next) {
				next = b
			}
		}
		if next < 0 {
			return
		}
		c.blocks = append(c.blocks, next)
		last = next
	}
}

// Lock acquires the blocks in ascending order. On failure the blocks already
// acquired are released.
func (c *QueryContext) Lock() (*Held, error) {
	if c.held != nil {
		return nil, ErrContextLocked
	}
	for i, b := range c.blocks {
		if err := c.tx.Lock(b, c.write); err != nil {
			for j := i - 1; j >= 0; j-- {
				c.tx.Unlock(c.blocks[j], c.write)
			}
			return nil, err
		}
	}
	c.held = &Held{ctx: c}
	return c.held, nil
}

// Held is the ownership of a locked QueryContext. Only the holder may run
// statements in the context, and it must call Unlock exactly once.
type Held struct {
	ctx *QueryContext
}

// Context returns the locked context.
func (h *Held) Context() *QueryContext {
	return h.ctx
}

// Unlock releases the blocks in descending order, flushes the changes of a
// writing execution and commits every block.
func (h *Held) Unlock() error {
	c := h.ctx
	if c == nil {
		return nil
	}
	h.ctx = nil
	c.held = nil
	for i := len(c.blocks) - 1; i >= 0; i-- {
		c.tx.Unlock(c.blocks[i], c.write)
	}
	var err error
	if c.write {
		err = c.tx.Flush()
	}
	for i := len(c.blocks) - 1; i >= 0; i-- {
		c.tx.Commit(c.blocks[i])
	}
	return err
}

// Column implements expr.Env.
func (c *QueryContext) Column(item, col int) value.Value {
	row := c.rows[item]
	if row == nil {
		return value.NullValue()
	}
	return row[col]
}

// OuterColumn implements expr.Env.
func (c *QueryContext) OuterColumn(depth, item, col int) value.Value {
	p := c
	for ; depth > 0; depth-- {
		p = p.parent
	}
	return p.Column(item, col)
}

// Param implements expr.Env.
func (c *QueryContext) Param(index int) (value.Value, error) {
	params := c.root.params
	if index < 1 || index > len(params) {
		return value.NullValue(), expr.ErrParamNotSet
	}
	return params[index-1], nil
}

// Aggregate implements expr.Env.
func (c *QueryContext) Aggregate(slot int) value.Value {
	if c.group == nil {
		return value.NullValue()
	}
	return c.group.result(slot)
}

// Now implements expr.Env.
func (c *QueryContext) Now() time.Time {
	return c.root.now
}

// Subquery implements expr.Env. Uncorrelated subqueries run once per
// statement.
func (c *QueryContext) Subquery(s *expr.Subquery, limit int) ([]value.Value, error) {
	if !s.Correlated {
		if vals, ok := c.root.cache[s.ID]; ok {
			return vals, nil
		}
	}
	q := s.Plan.(*Query)
	ch := c.child()
	defer contexts.Put(ch)
	res, err := ch.run.query(ch, q, limit)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	vals := make([]value.Value, 0, res.RowCount())
	for i := 0; i < res.RowCount(); i++ {
		res.SetRow(i)
		v, err := res.Value(0)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	if !s.Correlated {
		c.root.cache[s.ID] = vals
	}
	return vals, nil
}

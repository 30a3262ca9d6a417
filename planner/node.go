package planner

import (
	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/executor"
	"github.com/chirst/relq/expr"
)

// This file defines the relational nodes in a logical query plan. The nodes
// only describe the plan for `EXPLAIN QUERY PLAN`, the executor runs the plan
// structures in the executor package.

// logicalNode defines the interface for a node in the query plan tree.
type logicalNode interface {
	children() []logicalNode
	print() string
}

// projectNode is the root of a select. Subqueries hang off the project of the
// query they are nested in.
type projectNode struct {
	// id is the subquery id or 0 for a top level select.
	id         int
	columns    []string
	child      logicalNode
	subqueries []logicalNode
}

type limitNode struct {
	limit  expr.Expr
	offset expr.Expr
	child  logicalNode
}

type sortNode struct {
	keys  []string
	child logicalNode
}

type distinctNode struct {
	child logicalNode
}

// filterNode is a condition evaluated outside of the lanes, for example HAVING
// or a WHERE conjunct reading no table.
type filterNode struct {
	operation string
	predicate expr.Expr
	child     logicalNode
}

// groupNode aggregates its input. keys is empty when every row forms one
// group.
type groupNode struct {
	keys  []expr.Expr
	child logicalNode
}

// joinNode is a nested loop over left with right as the inner loop.
type joinNode struct {
	left  logicalNode
	right logicalNode
	// operation is join or left join.
	operation string
}

// scanNode is one lane reading a FROM item by scan or by probe.
type scanNode struct {
	item *executor.FromItem
}

// constantNode is the single row of a select without FROM.
type constantNode struct{}

type insertNode struct {
	table *catalog.Table
	// rows is the number of VALUES lists when there is no select.
	rows       int
	child      logicalNode
	subqueries []logicalNode
}

type updateNode struct {
	table      *catalog.Table
	columns    []string
	child      logicalNode
	subqueries []logicalNode
}

type deleteNode struct {
	table      *catalog.Table
	child      logicalNode
	subqueries []logicalNode
}

// createNode represents an operation to create an object in the system
// catalog, a table or an index.
type createNode struct {
	objectType string
	objectName string
	tableName  string
	// noop is true when the object already exists and the statement asked IF
	// NOT EXISTS.
	noop bool
}

type dropNode struct {
	objectType string
	objectName string
	noop       bool
}

type validateNode struct {
	table *catalog.Table
}

// queryTree returns the logical tree of a planned select.
func queryTree(q *executor.Query) logicalNode {
	node := laneTree(q)
	if q.Grouped() {
		node = &groupNode{keys: q.GroupBy, child: node}
		if q.Having != nil {
			node = &filterNode{operation: "having", predicate: q.Having, child: node}
		}
	}
	if q.Distinct {
		node = &distinctNode{child: node}
	}
	if len(q.OrderBy) > 0 {
		keys := make([]string, len(q.OrderBy))
		for i, k := range q.OrderBy {
			keys[i] = expr.Format(q.Exprs[k.Col])
			if k.Desc {
				keys[i] += " desc"
			}
		}
		node = &sortNode{keys: keys, child: node}
	}
	if q.Limit != nil || q.Offset != nil {
		node = &limitNode{limit: q.Limit, offset: q.Offset, child: node}
	}
	return &projectNode{
		id:         q.ID,
		columns:    q.Columns,
		child:      node,
		subqueries: subqueryTrees(q.Subqueries),
	}
}

// laneTree returns the nested loop of q with its residual filter.
func laneTree(q *executor.Query) logicalNode {
	var lanes logicalNode = &constantNode{}
	for i, item := range q.Items {
		if i == 0 {
			lanes = &scanNode{item: item}
			continue
		}
		op := "join"
		if item.Outer {
			op = "left join"
		}
		lanes = &joinNode{left: lanes, right: &scanNode{item: item}, operation: op}
	}
	if q.Residual != nil {
		return &filterNode{operation: "filter", predicate: q.Residual, child: lanes}
	}
	return lanes
}

func subqueryTrees(qs []*executor.Query) []logicalNode {
	var ret []logicalNode
	for _, q := range qs {
		ret = append(ret, queryTree(q))
	}
	return ret
}

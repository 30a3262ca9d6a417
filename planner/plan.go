package planner

// QueryPlan is the logical tree of a planned statement. It is only rendered
// when a statement is prefixed with EXPLAIN QUERY PLAN; execution uses the
// plan returned by ExecutionPlan.
type QueryPlan struct {
	root             logicalNode
	ExplainQueryPlan bool
}

func newQueryPlan(root logicalNode, explainQueryPlan bool) *QueryPlan {
	return &QueryPlan{root: root, ExplainQueryPlan: explainQueryPlan}
}

// ToString renders the tree with one node per line, children indented under
// their parent.
func (p *QueryPlan) ToString() string {
	return formatLogicalPlan(p.root)
}

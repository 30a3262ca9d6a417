package planner

import (
	"fmt"
	"strings"

	"github.com/chirst/relq/expr"
)

type planPrinter struct {
	plan strings.Builder
}

// formatLogicalPlan returns a string representation of a query plan. Displayed
// for statements prefixed with `EXPLAIN QUERY PLAN`.
func formatLogicalPlan(root logicalNode) string {
	printer := &planPrinter{}
	printer.plan.WriteString(" ── " + root.print() + "\n")
	printer.walkChildren(root, "     ")
	return printer.plan.String()
}

// walkChildren prints the children of ln below it. prefix holds the
// connecting lines of the ancestors.
func (p *planPrinter) walkChildren(ln logicalNode, prefix string) {
	children := ln.children()
	for i, c := range children {
		last := i == len(children)-1
		connector, next := "├─ ", "|   "
		if last {
			connector, next = "└─ ", "    "
		}
		p.plan.WriteString(prefix + connector + c.print() + "\n")
		p.walkChildren(c, prefix+next)
	}
}

func (p *projectNode) print() string {
	list := "project(" + strings.Join(p.columns, ", ") + ")"
	if p.id > 0 {
		return fmt.Sprintf("subquery %d %s", p.id, list)
	}
	return list
}

func (l *limitNode) print() string {
	s := "limit"
	if l.limit != nil {
		s += " " + expr.Format(l.limit)
	}
	if l.offset != nil {
		s += " offset " + expr.Format(l.offset)
	}
	return s
}

func (s *sortNode) print() string {
	return "sort(" + strings.Join(s.keys, ", ") + ")"
}

func (d *distinctNode) print() string {
	return "distinct"
}

func (f *filterNode) print() string {
	return f.operation + " " + expr.Format(f.predicate)
}

func (g *groupNode) print() string {
	if len(g.keys) == 0 {
		return "aggregate"
	}
	keys := make([]string, len(g.keys))
	for i, k := range g.keys {
		keys[i] = expr.Format(k)
	}
	return "group by(" + strings.Join(keys, ", ") + ")"
}

func (j *joinNode) print() string {
	return j.operation
}

func (s *scanNode) print() string {
	item := s.item
	var b strings.Builder
	if item.Probe == nil {
		fmt.Fprintf(&b, "scan table %s", item)
	} else {
		using := "rowid"
		if !item.Probe.Identity {
			using = "index " + item.Probe.Index.Name
		}
		fmt.Fprintf(&b, "search table %s using %s (%s)", item, using, expr.Format(item.Probe.Pred))
	}
	if item.On != nil {
		b.WriteString(" on " + expr.Format(item.On))
	}
	if item.Filter != nil {
		b.WriteString(" where " + expr.Format(item.Filter))
	}
	return b.String()
}

func (c *constantNode) print() string {
	return "constant row"
}

func (i *insertNode) print() string {
	if i.child == nil {
		return fmt.Sprintf("insert into %s values(%d)", i.table.Name, i.rows)
	}
	return "insert into " + i.table.Name
}

func (u *updateNode) print() string {
	return fmt.Sprintf("update %s set(%s)", u.table.Name, strings.Join(u.columns, ", "))
}

func (d *deleteNode) print() string {
	return "delete from " + d.table.Name
}

func (c *createNode) print() string {
	s := fmt.Sprintf("create %s %s", c.objectType, c.objectName)
	if c.objectType == "index" {
		s += " on " + c.tableName
	}
	if c.noop {
		s += " (exists)"
	}
	return s
}

func (d *dropNode) print() string {
	s := fmt.Sprintf("drop %s %s", d.objectType, d.objectName)
	if d.noop {
		s += " (not exists)"
	}
	return s
}

func (v *validateNode) print() string {
	return "validate table " + v.table.Name
}

func (p *projectNode) children() []logicalNode {
	return append([]logicalNode{p.child}, p.subqueries...)
}

func (l *limitNode) children() []logicalNode {
	return []logicalNode{l.child}
}

func (s *sortNode) children() []logicalNode {
	return []logicalNode{s.child}
}

func (d *distinctNode) children() []logicalNode {
	return []logicalNode{d.child}
}

func (f *filterNode) children() []logicalNode {
	return []logicalNode{f.child}
}

func (g *groupNode) children() []logicalNode {
	return []logicalNode{g.child}
}

func (j *joinNode) children() []logicalNode {
	return []logicalNode{j.left, j.right}
}

func (s *scanNode) children() []logicalNode {
	return []logicalNode{}
}

func (c *constantNode) children() []logicalNode {
	return []logicalNode{}
}

func (i *insertNode) children() []logicalNode {
	if i.child == nil {
		return i.subqueries
	}
	return append([]logicalNode{i.child}, i.subqueries...)
}

func (u *updateNode) children() []logicalNode {
	return append([]logicalNode{u.child}, u.subqueries...)
}

func (d *deleteNode) children() []logicalNode {
	return append([]logicalNode{d.child}, d.subqueries...)
}

func (c *createNode) children() []logicalNode {
	return []logicalNode{}
}

func (d *dropNode) children() []logicalNode {
	return []logicalNode{}
}

func (v *validateNode) children() []logicalNode {
	return []logicalNode{}
}

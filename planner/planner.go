// planner generates a query plan from an AST (abstract syntax tree) generated
// by the compiler. Names are bound against the catalog, the tables of a join
// are ordered and each WHERE conjunct is placed at the join level where it is
// first evaluable, either as an index probe or as a residual filter. The
// resulting plan structures are run by the executor.
package planner

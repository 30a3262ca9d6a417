package compiler

import "strings"

const (
	kwAll        = "ALL"
	kwAnd        = "AND"
	kwAs         = "AS"
	kwAsc        = "ASC"
	kwBetween    = "BETWEEN"
	kwBy         = "BY"
	kwCase       = "CASE"
	kwCheck      = "CHECK"
	kwConstraint = "CONSTRAINT"
	kwCreate     = "CREATE"
	kwCross      = "CROSS"
	kwDefault    = "DEFAULT"
	kwDelete     = "DELETE"
	kwDesc       = "DESC"
	kwDistinct   = "DISTINCT"
	kwDrop       = "DROP"
	kwElse       = "ELSE"
	kwEnd        = "END"
	kwEscape     = "ESCAPE"
	kwExists     = "EXISTS"
	kwExplain    = "EXPLAIN"
	kwFalse      = "FALSE"
	kwFrom       = "FROM"
	kwGroup      = "GROUP"
	kwHaving     = "HAVING"
	kwIf         = "IF"
	kwIn         = "IN"
	kwIndex      = "INDEX"
	kwInner      = "INNER"
	kwInsert     = "INSERT"
	kwInto       = "INTO"
	kwIs         = "IS"
	kwJoin       = "JOIN"
	kwKey        = "KEY"
	kwLeft       = "LEFT"
	kwLike       = "LIKE"
	kwLimit      = "LIMIT"
	kwNatural    = "NATURAL"
	kwNot        = "NOT"
	kwNull       = "NULL"
	kwOffset     = "OFFSET"
	kwOn         = "ON"
	kwOr         = "OR"
	kwOrder      = "ORDER"
	kwOuter      = "OUTER"
	kwPlan       = "PLAN"
	kwPrimary    = "PRIMARY"
	kwQuery      = "QUERY"
	kwSelect     = "SELECT"
	kwSet        = "SET"
	kwTable      = "TABLE"
	kwThen       = "THEN"
	kwTrue       = "TRUE"
	kwUnique     = "UNIQUE"
	kwUpdate     = "UPDATE"
	kwUsing      = "USING"
	kwValidate   = "VALIDATE"
	kwValues     = "VALUES"
	kwWhen       = "WHEN"
	kwWhere      = "WHERE"
)

// keywords are reserved words. Type names and function names are not
// reserved so they can still be used as identifiers.
var keywords = map[string]struct{}{}

func init() {
	for _, kw := range []string{
		kwAll, kwAnd, kwAs, kwAsc, kwBetween, kwBy, kwCase, kwCheck,
		kwConstraint, kwCreate, kwCross, kwDefault, kwDelete, kwDesc,
		kwDistinct, kwDrop, kwElse, kwEnd, kwEscape, kwExists, kwExplain,
		kwFalse, kwFrom, kwGroup, kwHaving, kwIf, kwIn, kwIndex, kwInner,
		kwInsert, kwInto, kwIs, kwJoin, kwKey, kwLeft, kwLike, kwLimit,
		kwNatural, kwNot, kwNull, kwOffset, kwOn, kwOr, kwOrder, kwOuter,
		kwPlan, kwPrimary, kwQuery, kwSelect, kwSet, kwTable, kwThen, kwTrue,
		kwUnique, kwUpdate, kwUsing, kwValidate, kwValues, kwWhen, kwWhere,
	} {
		keywords[kw] = struct{}{}
	}
}

func isKeyword(w string) bool {
	_, ok := keywords[strings.ToUpper(w)]
	return ok
}

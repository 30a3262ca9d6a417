package compiler

// parser takes tokens from the lexer and produces an AST (Abstract Syntax
// Tree). The AST is bound by the planner and ran by the executor.

import (
	"math"
	"strconv"
	"strings"

	"github.com/chirst/relq/catalog"
)

type parser struct {
	src    string
	tokens []token
	pos    int
	params int
}

// NewParser creates a parser over the tokens lexed from src. Whitespace tokens
// are dropped and an EOF token is appended.
func NewParser(src string, tokens []token) *parser {
	ts := make([]token, 0, len(tokens)+1)
	for _, t := range tokens {
		if t.tokenType != tkWhitespace {
			ts = append(ts, t)
		}
	}
	ts = append(ts, token{tkEOF, "", len(src)})
	return &parser{src: src, tokens: ts}
}

// Parse parses a single statement. A trailing semicolon is allowed.
func Parse(sql string) (Stmt, error) {
	tokens, err := NewLexer(sql).Lex()
	if err != nil {
		return nil, err
	}
	return NewParser(sql, tokens).Parse()
}

func (p *parser) Parse() (Stmt, error) {
	stmt, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	if p.peek().value == ";" {
		p.advance()
	}
	if t := p.peek(); t.tokenType != tkEOF {
		return nil, p.errorf(t, tokenErr, t.value)
	}
	stmt.Base().Params = p.params
	return stmt, nil
}

// Split splits a script into statements on semicolons outside of literals and
// comments. Empty statements are dropped.
func Split(sql string) ([]string, error) {
	tokens, err := NewLexer(sql).Lex()
	if err != nil {
		return nil, err
	}
	var ret []string
	start := 0
	hasContent := false
	for _, t := range tokens {
		switch {
		case t.tokenType == tkSeparator && t.value == ";":
			if hasContent {
				ret = append(ret, strings.TrimSpace(sql[start:t.pos]))
			}
			start = t.pos + 1
			hasContent = false
		case t.tokenType != tkWhitespace:
			hasContent = true
		}
	}
	if hasContent {
		ret = append(ret, strings.TrimSpace(sql[start:]))
	}
	return ret, nil
}

// IsTerminated reports whether sql ends with a semicolon outside of a literal
// or comment.
func IsTerminated(sql string) bool {
	tokens, err := NewLexer(sql).Lex()
	if err != nil {
		return false
	}
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].tokenType == tkWhitespace {
			continue
		}
		return tokens[i].tokenType == tkSeparator && tokens[i].value == ";"
	}
	return false
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *parser) advance() token {
	t := p.tokens[p.pos]
	if t.tokenType != tkEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return newParseError(p.src, t.pos, t.value, format, args...)
}

func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.tokenType == tkKeyword && t.value == kw
}

// accept consumes the keyword kw when it is next.
func (p *parser) accept(kw string) bool {
	if p.isKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(kw string) error {
	if !p.accept(kw) {
		t := p.peek()
		return p.errorf(t, tokenErr, t.value)
	}
	return nil
}

func (p *parser) isSymbol(s string) bool {
	t := p.peek()
	return (t.tokenType == tkSeparator || t.tokenType == tkOperator) && t.value == s
}

func (p *parser) acceptSymbol(s string) bool {
	if p.isSymbol(s) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectSymbol(s string) error {
	if !p.acceptSymbol(s) {
		t := p.peek()
		return p.errorf(t, tokenErr, t.value)
	}
	return nil
}

func (p *parser) parseIdent() (string, error) {
	t := p.advance()
	if t.tokenType != tkIdentifier {
		return "", p.errorf(t, identErr, t.value)
	}
	return t.value, nil
}

func (p *parser) parseIdentList() ([]string, error) {
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var ret []string
	for {
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		ret = append(ret, name)
		if !p.acceptSymbol(",") {
			break
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return ret, nil
}

func (p *parser) parseStmt() (Stmt, error) {
	sb := &StmtBase{}
	if p.accept(kwExplain) {
		if p.accept(kwQuery) {
			if err := p.expect(kwPlan); err != nil {
				return nil, err
			}
			sb.ExplainQueryPlan = true
		} else {
			sb.Explain = true
		}
	}
	t := p.peek()
	if t.tokenType != tkKeyword {
		return nil, p.errorf(t, tokenErr, t.value)
	}
	switch t.value {
	case kwSelect:
		return p.parseSelect(sb)
	case kwCreate:
		return p.parseCreate(sb)
	case kwInsert:
		return p.parseInsert(sb)
	case kwUpdate:
		return p.parseUpdate(sb)
	case kwDelete:
		return p.parseDelete(sb)
	case kwDrop:
		return p.parseDrop(sb)
	case kwValidate:
		return p.parseValidate(sb)
	}
	return nil, p.errorf(t, tokenErr, t.value)
}

func (p *parser) parseSelect(sb *StmtBase) (*SelectStmt, error) {
	stmt := &SelectStmt{StmtBase: sb}
	if err := p.expect(kwSelect); err != nil {
		return nil, err
	}
	if p.accept(kwDistinct) {
		stmt.Distinct = true
	} else {
		p.accept(kwAll)
	}
	for {
		rc, err := p.parseResultColumn()
		if err != nil {
			return nil, err
		}
		stmt.ResultColumns = append(stmt.ResultColumns, rc)
		if !p.acceptSymbol(",") {
			break
		}
	}
	if p.accept(kwFrom) {
		from, err := p.parseFrom()
		if err != nil {
			return nil, err
		}
		stmt.From = from
	}
	var err error
	if p.accept(kwWhere) {
		if stmt.Where, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	if p.accept(kwGroup) {
		if err := p.expect(kwBy); err != nil {
			return nil, err
		}
		if stmt.GroupBy, err = p.parseExprList(); err != nil {
			return nil, err
		}
	}
	if p.accept(kwHaving) {
		if stmt.Having, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	if p.accept(kwOrder) {
		if err := p.expect(kwBy); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			term := OrderingTerm{Expr: e}
			if p.accept(kwDesc) {
				term.Desc = true
			} else {
				p.accept(kwAsc)
			}
			stmt.OrderBy = append(stmt.OrderBy, term)
			if !p.acceptSymbol(",") {
				break
			}
		}
	}
	if p.accept(kwLimit) {
		if stmt.Limit, err = p.parseExpression(); err != nil {
			return nil, err
		}
		if p.acceptSymbol(",") {
			stmt.Offset = stmt.Limit
			if stmt.Limit, err = p.parseExpression(); err != nil {
				return nil, err
			}
		} else if p.accept(kwOffset) {
			if stmt.Offset, err = p.parseExpression(); err != nil {
				return nil, err
			}
		}
	}
	return stmt, nil
}

func (p *parser) parseResultColumn() (ResultColumn, error) {
	if p.acceptSymbol("*") {
		return ResultColumn{All: true}, nil
	}
	if t := p.peek(); t.tokenType == tkIdentifier && p.peekAt(1).value == "." && p.peekAt(2).value == "*" {
		p.advance()
		p.advance()
		p.advance()
		return ResultColumn{AllTable: t.value}, nil
	}
	e, err := p.parseExpression()
	if err != nil {
		return ResultColumn{}, err
	}
	rc := ResultColumn{Expression: e}
	if p.accept(kwAs) {
		t := p.advance()
		if t.tokenType != tkIdentifier && t.tokenType != tkLiteral {
			return ResultColumn{}, p.errorf(t, identErr, t.value)
		}
		rc.Alias = t.value
	} else if p.peek().tokenType == tkIdentifier {
		rc.Alias = p.advance().value
	}
	return rc, nil
}

func (p *parser) parseFrom() ([]*FromItem, error) {
	first, err := p.parseTableRef()
	if err != nil {
		return nil, err
	}
	items := []*FromItem{first}
	for {
		var join JoinType
		natural, comma := false, false
		switch {
		case p.acceptSymbol(","):
			join = JoinCross
			comma = true
		case p.accept(kwCross):
			join = JoinCross
		case p.accept(kwNatural):
			natural = true
			join = JoinInner
			if p.accept(kwLeft) {
				p.accept(kwOuter)
				join = JoinLeft
			} else {
				p.accept(kwInner)
			}
		case p.accept(kwLeft):
			p.accept(kwOuter)
			join = JoinLeft
		case p.accept(kwInner):
			join = JoinInner
		case p.isKeyword(kwJoin):
			join = JoinInner
		default:
			return items, nil
		}
		if !comma {
			if err := p.expect(kwJoin); err != nil {
				return nil, err
			}
		}
		item, err := p.parseTableRef()
		if err != nil {
			return nil, err
		}
		item.Join = join
		item.Natural = natural
		if !natural && join != JoinCross {
			if p.accept(kwOn) {
				if item.On, err = p.parseExpression(); err != nil {
					return nil, err
				}
			} else if p.accept(kwUsing) {
				if item.Using, err = p.parseIdentList(); err != nil {
					return nil, err
				}
			}
		}
		items = append(items, item)
	}
}

func (p *parser) parseTableRef() (*FromItem, error) {
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	item := &FromItem{TableName: name}
	if p.accept(kwAs) {
		if item.Alias, err = p.parseIdent(); err != nil {
			return nil, err
		}
	} else if p.peek().tokenType == tkIdentifier {
		item.Alias = p.advance().value
	}
	return item, nil
}

func (p *parser) parseCreate(sb *StmtBase) (Stmt, error) {
	if err := p.expect(kwCreate); err != nil {
		return nil, err
	}
	if p.isKeyword(kwUnique) || p.isKeyword(kwIndex) {
		return p.parseCreateIndex(sb)
	}
	stmt := &CreateStmt{StmtBase: sb}
	if err := p.expect(kwTable); err != nil {
		return nil, err
	}
	ifNotExists, err := p.parseIfNotExists()
	if err != nil {
		return nil, err
	}
	stmt.IfNotExists = ifNotExists
	if stmt.TableName, err = p.parseIdent(); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.tokenType == tkKeyword && (t.value == kwConstraint || t.value == kwUnique || t.value == kwPrimary || t.value == kwCheck) {
			c, err := p.parseTableConstraint()
			if err != nil {
				return nil, err
			}
			stmt.Constraints = append(stmt.Constraints, c)
		} else {
			cd, err := p.parseColDef()
			if err != nil {
				return nil, err
			}
			stmt.ColDefs = append(stmt.ColDefs, cd)
		}
		if !p.acceptSymbol(",") {
			break
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseIfNotExists() (bool, error) {
	if !p.accept(kwIf) {
		return false, nil
	}
	if err := p.expect(kwNot); err != nil {
		return false, err
	}
	if err := p.expect(kwExists); err != nil {
		return false, err
	}
	return true, nil
}

func (p *parser) parseColDef() (ColDef, error) {
	name, err := p.parseIdent()
	if err != nil {
		return ColDef{}, err
	}
	cd := ColDef{ColName: name}
	t := p.advance()
	if t.tokenType != tkIdentifier || !catalog.IsTypeName(t.value) {
		return ColDef{}, p.errorf(t, columnErr, t.value)
	}
	cd.ColType = strings.ToUpper(t.value)
	if cd.ColType == "IDENTITY" {
		cd.Identity = true
		cd.PrimaryKey = true
	}
	if p.acceptSymbol("(") {
		if cd.Size, err = p.parseSize(); err != nil {
			return ColDef{}, err
		}
		if p.acceptSymbol(",") {
			if cd.Scale, err = p.parseSize(); err != nil {
				return ColDef{}, err
			}
		}
		if err := p.expectSymbol(")"); err != nil {
			return ColDef{}, err
		}
	}
	for {
		t := p.peek()
		switch {
		case p.accept(kwNot):
			if err := p.expect(kwNull); err != nil {
				return ColDef{}, err
			}
			cd.NotNull = true
		case p.accept(kwNull):
		case p.accept(kwPrimary):
			if err := p.expect(kwKey); err != nil {
				return ColDef{}, err
			}
			cd.PrimaryKey = true
		case p.accept(kwUnique):
			cd.Unique = true
		case p.accept(kwDefault):
			if cd.Default, err = p.parseExprText(p.parseUnary); err != nil {
				return ColDef{}, err
			}
		case p.accept(kwCheck):
			if cd.Check, err = p.parseCheck(); err != nil {
				return ColDef{}, err
			}
		case t.tokenType == tkIdentifier && (strings.EqualFold(t.value, "IDENTITY") || strings.EqualFold(t.value, "AUTO_INCREMENT")):
			p.advance()
			cd.Identity = true
		default:
			return cd, nil
		}
	}
}

func (p *parser) parseSize() (int, error) {
	t := p.advance()
	if t.tokenType != tkNumeric {
		return 0, p.errorf(t, literalErr, t.value)
	}
	n, err := strconv.Atoi(t.value)
	if err != nil {
		return 0, p.errorf(t, literalErr, t.value)
	}
	return n, nil
}

// parseExprText parses an expression with parse and returns its source text.
func (p *parser) parseExprText(parse func() (Expr, error)) (string, error) {
	start := p.peek().pos
	if _, err := parse(); err != nil {
		return "", err
	}
	return strings.TrimSpace(p.src[start:p.peek().pos]), nil
}

func (p *parser) parseCheck() (string, error) {
	if err := p.expectSymbol("("); err != nil {
		return "", err
	}
	text, err := p.parseExprText(p.parseExpression)
	if err != nil {
		return "", err
	}
	if err := p.expectSymbol(")"); err != nil {
		return "", err
	}
	return text, nil
}

func (p *parser) parseTableConstraint() (TableConstraint, error) {
	var c TableConstraint
	var err error
	if p.accept(kwConstraint) {
		if c.Name, err = p.parseIdent(); err != nil {
			return c, err
		}
	}
	t := p.advance()
	switch t.value {
	case kwUnique:
		c.Type = ConstraintUnique
	case kwPrimary:
		if err := p.expect(kwKey); err != nil {
			return c, err
		}
		c.Type = ConstraintPrimaryKey
	case kwCheck:
		c.Type = ConstraintCheck
		c.Check, err = p.parseCheck()
		return c, err
	default:
		return c, p.errorf(t, tokenErr, t.value)
	}
	c.Columns, err = p.parseIdentList()
	return c, err
}

func (p *parser) parseCreateIndex(sb *StmtBase) (*CreateIndexStmt, error) {
	stmt := &CreateIndexStmt{StmtBase: sb}
	stmt.Unique = p.accept(kwUnique)
	if err := p.expect(kwIndex); err != nil {
		return nil, err
	}
	var err error
	if stmt.IfNotExists, err = p.parseIfNotExists(); err != nil {
		return nil, err
	}
	if stmt.IndexName, err = p.parseIdent(); err != nil {
		return nil, err
	}
	if err := p.expect(kwOn); err != nil {
		return nil, err
	}
	if stmt.TableName, err = p.parseIdent(); err != nil {
		return nil, err
	}
	if stmt.Columns, err = p.parseIdentList(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseDrop(sb *StmtBase) (*DropStmt, error) {
	stmt := &DropStmt{StmtBase: sb}
	if err := p.expect(kwDrop); err != nil {
		return nil, err
	}
	switch t := p.advance(); t.value {
	case kwTable:
	case kwIndex:
		stmt.Index = true
	default:
		return nil, p.errorf(t, tokenErr, t.value)
	}
	if p.accept(kwIf) {
		if err := p.expect(kwExists); err != nil {
			return nil, err
		}
		stmt.IfExists = true
	}
	var err error
	if stmt.Name, err = p.parseIdent(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseValidate(sb *StmtBase) (*ValidateStmt, error) {
	stmt := &ValidateStmt{StmtBase: sb}
	if err := p.expect(kwValidate); err != nil {
		return nil, err
	}
	p.accept(kwTable)
	var err error
	if stmt.TableName, err = p.parseIdent(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseInsert(sb *StmtBase) (*InsertStmt, error) {
	stmt := &InsertStmt{StmtBase: sb}
	if err := p.expect(kwInsert); err != nil {
		return nil, err
	}
	if err := p.expect(kwInto); err != nil {
		return nil, err
	}
	var err error
	if stmt.TableName, err = p.parseIdent(); err != nil {
		return nil, err
	}
	if p.isSymbol("(") {
		if stmt.ColNames, err = p.parseIdentList(); err != nil {
			return nil, err
		}
	}
	if p.isKeyword(kwSelect) {
		stmt.Select, err = p.parseSelect(&StmtBase{})
		return stmt, err
	}
	if err := p.expect(kwValues); err != nil {
		return nil, err
	}
	for {
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		row, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		stmt.ColValues = append(stmt.ColValues, row)
		if !p.acceptSymbol(",") {
			return stmt, nil
		}
	}
}

func (p *parser) parseUpdate(sb *StmtBase) (*UpdateStmt, error) {
	stmt := &UpdateStmt{StmtBase: sb}
	if err := p.expect(kwUpdate); err != nil {
		return nil, err
	}
	var err error
	if stmt.TableName, err = p.parseIdent(); err != nil {
		return nil, err
	}
	if err := p.expect(kwSet); err != nil {
		return nil, err
	}
	for {
		col, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("="); err != nil {
			return nil, err
		}
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.SetList = append(stmt.SetList, SetItem{Column: col, Value: e})
		if !p.acceptSymbol(",") {
			break
		}
	}
	if p.accept(kwWhere) {
		if stmt.Predicate, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *parser) parseDelete(sb *StmtBase) (*DeleteStmt, error) {
	stmt := &DeleteStmt{StmtBase: sb}
	if err := p.expect(kwDelete); err != nil {
		return nil, err
	}
	if err := p.expect(kwFrom); err != nil {
		return nil, err
	}
	var err error
	if stmt.TableName, err = p.parseIdent(); err != nil {
		return nil, err
	}
	if p.accept(kwWhere) {
		if stmt.Predicate, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *parser) parseExprList() ([]Expr, error) {
	var ret []Expr
	for {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		ret = append(ret, e)
		if !p.acceptSymbol(",") {
			return ret, nil
		}
	}
}

// parseExpression parses with precedence, low to high: OR, AND, NOT,
// comparison, ||, additive, multiplicative, unary minus.
func (p *parser) parseExpression() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept(kwOr) {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Operator: OpOr, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.accept(kwAnd) {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Operator: OpAnd, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.accept(kwNot) {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Operator: OpNot, Operand: operand}, nil
	}
	return p.parseComparison()
}

func isComparison(op string) bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.tokenType == tkOperator && isComparison(t.value) {
			p.advance()
			right, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			left = &BinaryExpr{Left: left, Operator: t.value, Right: right}
			continue
		}
		if p.accept(kwIs) {
			not := p.accept(kwNot)
			if err := p.expect(kwNull); err != nil {
				return nil, err
			}
			left = &IsNullExpr{Expr: left, Not: not}
			continue
		}
		not := false
		if p.isKeyword(kwNot) {
			next := p.peekAt(1)
			if next.tokenType != tkKeyword || (next.value != kwBetween && next.value != kwLike && next.value != kwIn) {
				return left, nil
			}
			p.advance()
			not = true
		}
		switch {
		case p.accept(kwBetween):
			low, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			if err := p.expect(kwAnd); err != nil {
				return nil, err
			}
			high, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			left = &BetweenExpr{Expr: left, Low: low, High: high, Not: not}
		case p.accept(kwLike):
			pattern, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			like := &LikeExpr{Expr: left, Pattern: pattern, Not: not}
			if p.accept(kwEscape) {
				if like.Escape, err = p.parseConcat(); err != nil {
					return nil, err
				}
			}
			left = like
		case p.accept(kwIn):
			in, err := p.parseIn(left, not)
			if err != nil {
				return nil, err
			}
			left = in
		default:
			return left, nil
		}
	}
}

func (p *parser) parseIn(left Expr, not bool) (Expr, error) {
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	in := &InExpr{Expr: left, Not: not}
	var err error
	if p.isKeyword(kwSelect) {
		in.Select, err = p.parseSelect(&StmtBase{})
	} else {
		in.List, err = p.parseExprList()
	}
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return in, nil
}

func (p *parser) parseConcat() (Expr, error) {
	return p.parseBinary(p.parseAdditive, OpConcat)
}

func (p *parser) parseAdditive() (Expr, error) {
	return p.parseBinary(p.parseMultiplicative, OpAdd, OpSub)
}

func (p *parser) parseMultiplicative() (Expr, error) {
	return p.parseBinary(p.parseUnary, OpMul, OpDiv, OpMod)
}

// parseBinary parses a left associative chain of operands joined by ops.
func (p *parser) parseBinary(operand func() (Expr, error), ops ...string) (Expr, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		matched := false
		for _, op := range ops {
			if t.tokenType == tkOperator && t.value == op {
				matched = true
			}
		}
		if !matched {
			return left, nil
		}
		p.advance()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Operator: t.value, Right: right}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	switch {
	case p.isSymbol("-"):
		p.advance()
		if t := p.peek(); t.tokenType == tkNumeric {
			p.advance()
			return p.parseNumber(t, "-"+t.value)
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Operator: OpNeg, Operand: operand}, nil
	case p.isSymbol("+"):
		p.advance()
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.advance()
	switch t.tokenType {
	case tkNumeric:
		return p.parseNumber(t, t.value)
	case tkLiteral:
		return &StringLit{Value: t.value}, nil
	case tkParam:
		p.params++
		return &Variable{Position: p.params}, nil
	case tkKeyword:
		switch t.value {
		case kwNull:
			return &NullLit{}, nil
		case kwTrue:
			return &BoolLit{Value: true}, nil
		case kwFalse:
			return &BoolLit{Value: false}, nil
		case kwExists:
			sel, err := p.parseSubquery()
			if err != nil {
				return nil, err
			}
			return &ExistsExpr{Select: sel}, nil
		case kwCase:
			return p.parseCase()
		}
	case tkSeparator:
		if t.value == "(" {
			if p.isKeyword(kwSelect) {
				sel, err := p.parseSelect(&StmtBase{})
				if err != nil {
					return nil, err
				}
				if err := p.expectSymbol(")"); err != nil {
					return nil, err
				}
				return &SubqueryExpr{Select: sel}, nil
			}
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	case tkIdentifier:
		if p.isSymbol("(") {
			return p.parseFunction(t)
		}
		if p.isSymbol(".") {
			p.advance()
			col, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			return &ColumnRef{Table: t.value, Column: col}, nil
		}
		if strings.EqualFold(t.value, "CURRENT_TIMESTAMP") {
			return &FunctionExpr{Name: "NOW"}, nil
		}
		return &ColumnRef{Column: t.value}, nil
	}
	return nil, p.errorf(t, tokenErr, t.value)
}

func (p *parser) parseSubquery() (*SelectStmt, error) {
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	sel, err := p.parseSelect(&StmtBase{})
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return sel, nil
}

func (p *parser) parseFunction(name token) (Expr, error) {
	info, ok := LookupFunction(name.value)
	if !ok {
		return nil, p.errorf(name, "%v %s", ErrUnknownFunction, name.value)
	}
	p.advance()
	fn := &FunctionExpr{Name: info.Name}
	switch {
	case p.acceptSymbol(")"):
	case info.Name == "COUNT" && p.isSymbol("*"):
		p.advance()
		fn.Star = true
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
	default:
		if info.Aggregate && p.accept(kwDistinct) {
			fn.Distinct = true
		}
		args, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		fn.Args = args
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
	}
	n := len(fn.Args)
	if fn.Star {
		n = 1
	}
	if n < info.MinArgs || (info.MaxArgs >= 0 && n > info.MaxArgs) || (info.Name == "COUNT" && n == 0) {
		return nil, p.errorf(name, "wrong number of arguments to %s", info.Name)
	}
	return fn, nil
}

func (p *parser) parseCase() (Expr, error) {
	c := &CaseExpr{}
	var err error
	if !p.isKeyword(kwWhen) {
		if c.Operand, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	for p.accept(kwWhen) {
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(kwThen); err != nil {
			return nil, err
		}
		result, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		c.Whens = append(c.Whens, WhenClause{Cond: cond, Result: result})
	}
	if len(c.Whens) == 0 {
		t := p.peek()
		return nil, p.errorf(t, tokenErr, t.value)
	}
	if p.accept(kwElse) {
		if c.Else, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	if err := p.expect(kwEnd); err != nil {
		return nil, err
	}
	return c, nil
}

// parseNumber classifies a numeric literal. A decimal point, exponent or D/F
// suffix makes a double, an L suffix or a value outside 32 bits makes a long.
func (p *parser) parseNumber(t token, text string) (Expr, error) {
	long := false
	switch text[len(text)-1] {
	case 'L', 'l':
		long = true
		text = text[:len(text)-1]
	case 'D', 'd', 'F', 'f':
		f, err := strconv.ParseFloat(text[:len(text)-1], 64)
		if err != nil {
			return nil, p.errorf(t, literalErr, t.value)
		}
		return &FloatLit{Value: f}, nil
	}
	if strings.ContainsAny(text, ".eE") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, p.errorf(t, literalErr, t.value)
		}
		return &FloatLit{Value: f}, nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		if long {
			return nil, p.errorf(t, "%s out of range", t.value)
		}
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil {
			return nil, p.errorf(t, literalErr, t.value)
		}
		return &FloatLit{Value: f}, nil
	}
	return &IntLit{Value: i, Long: long || i > math.MaxInt32 || i < math.MinInt32}, nil
}

package compiler

// lexer creates tokens from a sql string. The tokens are fed into the parser.

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

type token struct {
	tokenType tokenType
	value     string
	// pos is the byte offset of the token in the source.
	pos int
}

const (
	// tkKeyword is a reserved word. For example SELECT, FROM, or WHERE.
	tkKeyword tokenType = iota + 1
	// tkIdentifier is a word that is not a keyword like a table or column name.
	// Quoted identifiers have their quotes removed.
	tkIdentifier
	// tkWhitespace is a space, tab, newline or comment.
	tkWhitespace
	// tkEOF (End of file) is the end of input.
	tkEOF
	// tkSeparator is punctuation such as "(", ",", ";", ".".
	tkSeparator
	// tkOperator is a symbol that operates on arguments.
	tkOperator
	// tkLiteral is a quoted text value like 'foo'. The value holds the text
	// with quotes and escapes resolved.
	tkLiteral
	// tkNumeric is a numeric value like 1, 1.2, 3e4 or 5L.
	tkNumeric
	// tkParam is the parameter marker ?.
	tkParam
)

func (t tokenType) String() string {
	switch t {
	case tkKeyword:
		return "keyword"
	case tkIdentifier:
		return "identifier"
	case tkWhitespace:
		return "whitespace"
	case tkEOF:
		return "end of input"
	case tkSeparator:
		return "separator"
	case tkOperator:
		return "operator"
	case tkLiteral:
		return "literal"
	case tkNumeric:
		return "numeric"
	case tkParam:
		return "parameter"
	}
	return "unknown"
}

type lexer struct {
	src   string
	start int
	end   int
}

// NewLexer creates a lexer over src.
func NewLexer(src string) *lexer {
	return &lexer{src: src}
}

// Lex returns every token of the source excluding the final EOF.
func (l *lexer) Lex() ([]token, error) {
	ret := []token{}
	for {
		t, err := l.getToken()
		if err != nil {
			return nil, err
		}
		if t.tokenType == tkEOF {
			return ret, nil
		}
		ret = append(ret, t)
	}
}

func (l *lexer) getToken() (token, error) {
	l.start = l.end
	r := l.peek(l.start)
	switch {
	case r == 0 && l.start >= len(l.src):
		return token{tkEOF, "", l.start}, nil
	case l.isWhiteSpace(r):
		return l.scanWhiteSpace(), nil
	case r == '#', r == '-' && l.peek(l.start+1) == '-':
		return l.scanLineComment(), nil
	case r == '/' && l.peek(l.start+1) == '*':
		return l.scanBlockComment()
	case l.isLetter(r) || l.isUnderscore(r):
		return l.scanWord(), nil
	case l.isDigit(r), r == '.' && l.isDigit(l.peek(l.start+1)):
		return l.scanDigit(), nil
	case l.isSeparator(r):
		return l.scanSeparator(), nil
	case l.isSingleQuote(r):
		return l.scanLiteral()
	case r == '"' || r == '`':
		return l.scanQuotedIdentifier(r)
	case r == '[':
		return l.scanQuotedIdentifier(']')
	case r == '?':
		l.advance()
		return token{tkParam, "?", l.start}, nil
	case l.isOperator(r):
		return l.scanOperator(), nil
	}
	return token{}, l.errorf("unexpected character %q", string(r))
}

func (l *lexer) errorf(format string, args ...any) error {
	return newParseError(l.src, l.start, l.src[l.start:min(l.start+1, len(l.src))], format, args...)
}

// peek returns the rune at pos without consuming it. 0 is returned past the
// end of the source.
func (l *lexer) peek(pos int) rune {
	if len(l.src) <= pos {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[pos:])
	return r
}

// advance consumes the rune at the end of the current token.
func (l *lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.src[l.end:])
	l.end += size
	return r
}

func (l *lexer) scanWhiteSpace() token {
	l.advance()
	for l.isWhiteSpace(l.peek(l.end)) {
		l.advance()
	}
	return token{tkWhitespace, " ", l.start}
}

func (l *lexer) scanLineComment() token {
	for l.end < len(l.src) && l.peek(l.end) != '\n' {
		l.advance()
	}
	return token{tkWhitespace, " ", l.start}
}

func (l *lexer) scanBlockComment() (token, error) {
	l.end += 2
	for {
		if l.end >= len(l.src) {
			return token{}, l.errorf("unterminated comment")
		}
		if l.peek(l.end) == '*' && l.peek(l.end+1) == '/' {
			l.end += 2
			return token{tkWhitespace, " ", l.start}, nil
		}
		l.advance()
	}
}

func (l *lexer) scanWord() token {
	l.advance()
	for r := l.peek(l.end); l.isLetter(r) || l.isUnderscore(r) || l.isDigit(r) || r == '$'; r = l.peek(l.end) {
		l.advance()
	}
	value := l.src[l.start:l.end]
	if isKeyword(value) {
		return token{tkKeyword, strings.ToUpper(value), l.start}
	}
	return token{tkIdentifier, value, l.start}
}

// scanDigit scans an integer or decimal number with an optional exponent and
// an optional type suffix.
func (l *lexer) scanDigit() token {
	for l.isDigit(l.peek(l.end)) {
		l.advance()
	}
	if l.peek(l.end) == '.' && !l.isLetter(l.peek(l.end+1)) {
		l.advance()
		for l.isDigit(l.peek(l.end)) {
			l.advance()
		}
	}
	if r := l.peek(l.end); r == 'e' || r == 'E' {
		next := l.peek(l.end + 1)
		if l.isDigit(next) || (next == '+' || next == '-') && l.isDigit(l.peek(l.end+2)) {
			l.advance()
			l.advance()
			for l.isDigit(l.peek(l.end)) {
				l.advance()
			}
		}
	}
	switch l.peek(l.end) {
	case 'L', 'l', 'D', 'd', 'F', 'f':
		if r := l.peek(l.end + 1); !l.isLetter(r) && !l.isDigit(r) && !l.isUnderscore(r) {
			l.advance()
		}
	}
	return token{tkNumeric, l.src[l.start:l.end], l.start}
}

func (l *lexer) scanSeparator() token {
	l.advance()
	return token{tkSeparator, l.src[l.start:l.end], l.start}
}

func (l *lexer) scanOperator() token {
	r := l.advance()
	next := l.peek(l.end)
	switch {
	case r == '<' && (next == '=' || next == '>'),
		r == '>' && next == '=',
		r == '!' && next == '=',
		r == '|' && next == '|':
		l.advance()
	}
	v := l.src[l.start:l.end]
	if v == "!=" {
		v = "<>"
	}
	return token{tkOperator, v, l.start}
}

// scanLiteral scans a single quoted string. A quote is escaped by doubling it
// and a backslash escapes the following character.
func (l *lexer) scanLiteral() (token, error) {
	l.advance()
	var sb strings.Builder
	for {
		if l.end >= len(l.src) {
			return token{}, l.errorf("unterminated literal")
		}
		r := l.advance()
		switch {
		case r == '\\':
			if l.end >= len(l.src) {
				return token{}, l.errorf("unterminated literal")
			}
			sb.WriteRune(unescape(l.advance()))
		case l.isSingleQuote(r) && l.isSingleQuote(l.peek(l.end)):
			l.advance()
			sb.WriteRune('\'')
		case l.isSingleQuote(r):
			return token{tkLiteral, sb.String(), l.start}, nil
		default:
			sb.WriteRune(r)
		}
	}
}

func unescape(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	}
	return r
}

func (l *lexer) scanQuotedIdentifier(closing rune) (token, error) {
	l.advance()
	var sb strings.Builder
	for {
		if l.end >= len(l.src) {
			return token{}, l.errorf("unterminated identifier")
		}
		r := l.advance()
		if r == closing {
			if l.peek(l.end) == closing && closing != ']' {
				l.advance()
				sb.WriteRune(r)
				continue
			}
			return token{tkIdentifier, sb.String(), l.start}, nil
		}
		sb.WriteRune(r)
	}
}

func (*lexer) isWhiteSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func (*lexer) isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func (*lexer) isUnderscore(r rune) bool {
	return r == '_'
}

func (*lexer) isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func (*lexer) isSeparator(r rune) bool {
	return r == ',' || r == '(' || r == ')' || r == ';' || r == '.'
}

func (*lexer) isOperator(r rune) bool {
	return strings.ContainsRune("=<>!+-*/%|", r)
}

func (*lexer) isSingleQuote(r rune) bool {
	return r == '\''
}

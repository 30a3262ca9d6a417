package compiler

import (
	"errors"
	"fmt"
	"strings"
)

const (
	tokenErr   = "unexpected token %s"
	identErr   = "expected identifier but got %s"
	columnErr  = "expected column type but got %s"
	literalErr = "expected literal but got %s"
)

// ErrUnknownFunction is wrapped by the parse error for a call to a function
// that is not registered.
var ErrUnknownFunction = errors.New("unknown function")

// ParseError is returned for input that cannot be tokenized or parsed.
type ParseError struct {
	Msg string
	// Token is the text of the offending token. It is empty at end of input.
	Token string
	// Pos is the byte offset of the offending token.
	Pos int
	// Query is the text being parsed.
	Query string
	err   error
}

func newParseError(query string, pos int, tok string, format string, args ...any) *ParseError {
	pe := &ParseError{
		Msg:   fmt.Sprintf(format, args...),
		Token: tok,
		Pos:   pos,
		Query: query,
	}
	for _, a := range args {
		if err, ok := a.(error); ok {
			pe.err = err
		}
	}
	return pe
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Msg)
	if e.Token == "" {
		sb.WriteString(" at end of input")
	} else {
		fmt.Fprintf(&sb, " at %q (position %d)", e.Token, e.Pos)
	}
	fmt.Fprintf(&sb, " in %q", e.Query)
	return sb.String()
}

func (e *ParseError) Unwrap() error {
	return e.err
}

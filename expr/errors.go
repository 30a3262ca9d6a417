package expr

import (
	"errors"

	"github.com/chirst/relq/value"
)

// Bind errors.
var (
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrAggregateNotAllowed = errors.New("aggregate not allowed here")
	ErrUnknownFunction     = errors.New("unknown function")
	ErrInvalidPattern      = errors.New("invalid LIKE pattern")
	ErrSubqueryColumns     = errors.New("subquery must return one column")
)

// Evaluation errors.
var (
	ErrConversion     = value.ErrConversion
	ErrOverflow       = value.ErrOverflow
	ErrDivisionByZero = errors.New("division by zero")
	ErrParamNotSet    = errors.New("parameter not set")
	ErrSubqueryRows   = errors.New("scalar subquery returned more than one row")
)

package executor

import (
	"errors"

	"github.com/chirst/relq/kv"
)

var (
	// ErrVersionChanged signals the plan must be built again since the catalog
	// has changed since the statement was planned.
	ErrVersionChanged = errors.New("statement was planned with an out of date catalog")
	// ErrParamCount is returned when the number of arguments does not match
	// the parameter markers of the statement.
	ErrParamCount = errors.New("wrong number of parameters")
	// ErrContextLocked is returned by Lock when the context already holds its
	// locks.
	ErrContextLocked = errors.New("query context is already locked")
	// ErrCheckViolation is returned when a row makes a CHECK constraint false.
	ErrCheckViolation = kv.ErrCheckViolation
	// ErrInvalidLimit is returned when LIMIT or OFFSET evaluate to a negative
	// or non integer value.
	ErrInvalidLimit = errors.New("LIMIT and OFFSET must be non-negative integers")
	// ErrValidation is returned by VALIDATE for the first inconsistency found.
	ErrValidation = errors.New("validation failed")
)

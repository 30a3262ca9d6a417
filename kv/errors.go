package kv

import "errors"

var (
	// ErrLockTimeout is returned when a block lock cannot be acquired within
	// the transaction's timeout.
	ErrLockTimeout = errors.New("lock timeout")
	// ErrNotLocked is returned when a block is accessed without holding the
	// lock the access requires.
	ErrNotLocked = errors.New("block not locked")
	// ErrUniqueViolation is returned when a row duplicates a key of a unique
	// index or the table's rowid.
	ErrUniqueViolation = errors.New("unique constraint violated")
	// ErrNotNullViolation is returned when NULL is stored in a NOT NULL column.
	ErrNotNullViolation = errors.New("not null constraint violated")
	// ErrCheckViolation is returned when a row fails a CHECK constraint.
	ErrCheckViolation = errors.New("check constraint violated")
	// ErrRecordTooLarge is returned when a key and value cannot share a page
	// with enough other tuples to keep the tree balanced.
	ErrRecordTooLarge = errors.New("record too large")
	// ErrRowNotFound is returned when a rowid does not exist.
	ErrRowNotFound = errors.New("row not found")
)

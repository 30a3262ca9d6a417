package catalog

import "errors"

var (
	ErrTableNotExist = errors.New("table does not exist")
	ErrValueTooLong  = errors.New("value too long")
)

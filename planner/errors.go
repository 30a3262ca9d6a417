package planner

import (
	"errors"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/expr"
)

var (
	ErrTableNotExist       = catalog.ErrTableNotExist
	ErrTableExists         = errors.New("table exists")
	ErrIndexNotExist       = errors.New("index does not exist")
	ErrIndexExists         = errors.New("index exists")
	ErrColumnNotExist      = errors.New("column does not exist")
	ErrAmbiguousColumn     = errors.New("ambiguous column")
	ErrDuplicateColumn     = errors.New("duplicate column")
	ErrDuplicateTable      = errors.New("duplicate table name in FROM")
	ErrUnknownType         = errors.New("unknown column type")
	ErrInvalidPKColumnType = errors.New("identity column must have an integral type")
	ErrMoreThanOnePK       = errors.New("more than one primary key specified")
	ErrValuesNotMatch      = errors.New("values list did not match columns list")
	ErrGroupBy             = errors.New("column must appear in GROUP BY or an aggregate")
	ErrOrderBy             = errors.New("ORDER BY position out of range")
	ErrNotBoolean          = errors.New("condition is not boolean")
	ErrInvalidLimit        = errors.New("LIMIT and OFFSET must be integer constants or parameters")
	ErrTooManyTables       = errors.New("too many tables in join")
	ErrReadOnlyTable       = errors.New("table is read only")
	ErrTypeMismatch        = expr.ErrTypeMismatch
	ErrAggregateNotAllowed = expr.ErrAggregateNotAllowed
	ErrSubqueryColumns     = expr.ErrSubqueryColumns
)

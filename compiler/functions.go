package compiler

import "strings"

// FuncInfo describes a callable function. Implementations live with the
// expression evaluator; the parser only needs the arity to reject bad calls
// early.
type FuncInfo struct {
	// Name is the canonical upper case name. Aliases resolve to it.
	Name    string
	MinArgs int
	// MaxArgs is -1 for variadic functions.
	MaxArgs   int
	Aggregate bool
}

var functions = map[string]FuncInfo{
	"ABS":       {Name: "ABS", MinArgs: 1, MaxArgs: 1},
	"ROUND":     {Name: "ROUND", MinArgs: 1, MaxArgs: 2},
	"FLOOR":     {Name: "FLOOR", MinArgs: 1, MaxArgs: 1},
	"CEILING":   {Name: "CEILING", MinArgs: 1, MaxArgs: 1},
	"SQRT":      {Name: "SQRT", MinArgs: 1, MaxArgs: 1},
	"POWER":     {Name: "POWER", MinArgs: 2, MaxArgs: 2},
	"MOD":       {Name: "MOD", MinArgs: 2, MaxArgs: 2},
	"SIGN":      {Name: "SIGN", MinArgs: 1, MaxArgs: 1},
	"UPPER":     {Name: "UPPER", MinArgs: 1, MaxArgs: 1},
	"LOWER":     {Name: "LOWER", MinArgs: 1, MaxArgs: 1},
	"LENGTH":    {Name: "LENGTH", MinArgs: 1, MaxArgs: 1},
	"SUBSTRING": {Name: "SUBSTRING", MinArgs: 2, MaxArgs: 3},
	"TRIM":      {Name: "TRIM", MinArgs: 1, MaxArgs: 1},
	"LTRIM":     {Name: "LTRIM", MinArgs: 1, MaxArgs: 1},
	"RTRIM":     {Name: "RTRIM", MinArgs: 1, MaxArgs: 1},
	"REPLACE":   {Name: "REPLACE", MinArgs: 3, MaxArgs: 3},
	"CONCAT":    {Name: "CONCAT", MinArgs: 1, MaxArgs: -1},
	"COALESCE":  {Name: "COALESCE", MinArgs: 1, MaxArgs: -1},
	"IFNULL":    {Name: "IFNULL", MinArgs: 2, MaxArgs: 2},
	"NULLIF":    {Name: "NULLIF", MinArgs: 2, MaxArgs: 2},
	"NOW":       {Name: "NOW", MinArgs: 0, MaxArgs: 0},
	"MIN":       {Name: "MIN", MinArgs: 1, MaxArgs: 1, Aggregate: true},
	"MAX":       {Name: "MAX", MinArgs: 1, MaxArgs: 1, Aggregate: true},
	"SUM":       {Name: "SUM", MinArgs: 1, MaxArgs: 1, Aggregate: true},
	"AVG":       {Name: "AVG", MinArgs: 1, MaxArgs: 1, Aggregate: true},
	"COUNT":     {Name: "COUNT", MinArgs: 0, MaxArgs: 1, Aggregate: true},
}

var functionAliases = map[string]string{
	"CEIL":              "CEILING",
	"POW":               "POWER",
	"LEN":               "LENGTH",
	"CHAR_LENGTH":       "LENGTH",
	"SUBSTR":            "SUBSTRING",
	"UCASE":             "UPPER",
	"LCASE":             "LOWER",
	"CURRENT_TIMESTAMP": "NOW",
}

// LookupFunction resolves a function name, case insensitive, to its canonical
// description.
func LookupFunction(name string) (FuncInfo, bool) {
	n := strings.ToUpper(name)
	if alias, ok := functionAliases[n]; ok {
		n = alias
	}
	info, ok := functions[n]
	return info, ok
}

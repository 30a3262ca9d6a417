package expr

import "github.com/chirst/relq/value"

// Bool3 is a boolean in three valued logic where Unknown stands for a
// comparison involving NULL.
type Bool3 uint8

const (
	False Bool3 = iota
	True
	Unknown
)

func (b Bool3) String() string {
	switch b {
	case False:
		return "FALSE"
	case True:
		return "TRUE"
	}
	return "UNKNOWN"
}

// FromBool converts a two valued boolean.
func FromBool(b bool) Bool3 {
	if b {
		return True
	}
	return False
}

// Value returns b as a boolean value, NULL for Unknown.
func (b Bool3) Value() value.Value {
	switch b {
	case False:
		return value.BoolValue(false)
	case True:
		return value.BoolValue(true)
	}
	return value.NullValue()
}

func And3(a, b Bool3) Bool3 {
	switch {
	case a == False || b == False:
		return False
	case a == True && b == True:
		return True
	}
	return Unknown
}

func Or3(a, b Bool3) Bool3 {
	switch {
	case a == True || b == True:
		return True
	case a == False && b == False:
		return False
	}
	return Unknown
}

func Not3(a Bool3) Bool3 {
	switch a {
	case True:
		return False
	case False:
		return True
	}
	return Unknown
}

// Package compiler turns SQL text into statement trees. The lexer produces
// tokens with their byte offsets and the recursive descent parser builds one
// Stmt per statement. Names are left unresolved until the planner binds them.
package compiler

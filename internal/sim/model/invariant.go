package model

import "fmt"

// InvariantError is the panic value for caller misuse and broken structural
// invariants (unknown actor ids, misaligned catalogs, acausal reasons). The
// simulation never recovers it; only history importers turn it into an error.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "invariant violated: " + e.Msg }

// Violate panics with an *InvariantError.
func Violate(format string, args ...any) {
	panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
}

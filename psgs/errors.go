package psgs

import (
	"errors"
	"fmt"
)

// Error classes.  Every error returned by the graph and storage packages wraps
// exactly one of these, so callers can distinguish bad input from bad persisted
// state and corruption with errors.Is.
var (
	// ErrUsage marks a precondition failure caused by the caller.  State is unchanged.
	ErrUsage = errors.New("usage error")

	// ErrBadPersistedState marks a graph directory that can't be opened as is.
	ErrBadPersistedState = errors.New("bad persisted state")

	// ErrCorrupted marks an on-disk or in-memory inconsistency.  Not recoverable.
	ErrCorrupted = errors.New("graph data corrupted")

	// ErrTooManyTypes is returned when more than 255 node types or edge models
	// are used within one graph.
	ErrTooManyTypes = errors.New("only 255 types can be indexed")
)

// Usage errors.
var (
	ErrZeroNodeID     = fmt.Errorf("%w: node id couldn't be 0", ErrUsage)
	ErrCrossGraph     = fmt.Errorf("%w: node and edge model should be from the same graph", ErrUsage)
	ErrNodeAttached   = fmt.Errorf("%w: node couldn't be contained in 2 graphs simultaneously", ErrUsage)
	ErrNodeNotInGraph = fmt.Errorf("%w: the graph must contain the node", ErrUsage)
	ErrUnknownTarget  = fmt.Errorf("%w: edge target node doesn't exist", ErrUsage)
	ErrUnknownModel   = fmt.Errorf("%w: edge model isn't registered in the schema", ErrUsage)
	ErrUnknownType    = fmt.Errorf("%w: node type isn't registered in the schema", ErrUsage)
)

// Usagef returns an error of class ErrUsage.
func Usagef(format string, args ...interface{}) error {
	return classed(ErrUsage, format, args...)
}

// BadStatef returns an error of class ErrBadPersistedState.
func BadStatef(format string, args ...interface{}) error {
	return classed(ErrBadPersistedState, format, args...)
}

// Corruptedf returns an error of class ErrCorrupted.
func Corruptedf(format string, args ...interface{}) error {
	return classed(ErrCorrupted, format, args...)
}

func classed(class error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", class, fmt.Sprintf(format, args...))
}

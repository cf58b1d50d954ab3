package strata

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("strata: entity not found")

	// ErrNotSingular is returned when a query that expects exactly one result
	// returns zero or multiple results.
	ErrNotSingular = errors.New("strata: entity not singular")

	// ErrNoPrimaryKey is returned when an operation keyed by primary key
	// (update or delete of an entity) targets a type without one.
	ErrNoPrimaryKey = errors.New("strata: entity has no primary key")

	// ErrUnsupportedExpression is matched by every UnsupportedExpressionError.
	ErrUnsupportedExpression = errors.New("strata: unsupported expression")

	// ErrColumnMismatch is matched by every ColumnMismatchError.
	ErrColumnMismatch = errors.New("strata: column count mismatch")

	// ErrUnknownMember is matched by every UnknownMemberError.
	ErrUnknownMember = errors.New("strata: unknown member")
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	label string
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("strata: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// NewNotFoundError returns a new NotFoundError for the given entity type.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NotSingularError represents an error when a query expects a singular result
// but receives zero or multiple results.
type NotSingularError struct {
	label string
	count int
}

// Error returns the error string.
func (e *NotSingularError) Error() string {
	return fmt.Sprintf("strata: %s not singular (got %d results, expected 1)", e.label, e.count)
}

// Is reports whether the target error matches NotSingularError.
func (e *NotSingularError) Is(err error) bool {
	return err == ErrNotSingular
}

// Count returns the number of results.
func (e *NotSingularError) Count() int {
	return e.count
}

// NewNotSingularError returns a new NotSingularError with the result count.
func NewNotSingularError(label string, count int) *NotSingularError {
	return &NotSingularError{label: label, count: count}
}

// IsNotSingular returns true if the error is a NotSingularError.
func IsNotSingular(err error) bool {
	if err == nil {
		return false
	}
	var e *NotSingularError
	return errors.As(err, &e) || errors.Is(err, ErrNotSingular)
}

// UnsupportedExpressionError is returned by the predicate translator for any
// node it does not know how to render. Kind names the offending node.
type UnsupportedExpressionError struct {
	Kind   string
	Reason string
}

// Error returns the error string.
func (e *UnsupportedExpressionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("strata: unsupported expression %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("strata: unsupported expression %s", e.Kind)
}

// Is reports whether the target error is ErrUnsupportedExpression.
func (e *UnsupportedExpressionError) Is(err error) bool {
	return err == ErrUnsupportedExpression
}

// NewUnsupportedExpressionError returns a new UnsupportedExpressionError.
func NewUnsupportedExpressionError(kind, reason string) *UnsupportedExpressionError {
	return &UnsupportedExpressionError{Kind: kind, Reason: reason}
}

// ColumnMismatchError is returned when a row batch does not line up with the
// flattened column layout of the descriptor it is materialized against. The
// whole batch is rejected.
type ColumnMismatchError struct {
	Entity   string
	Expected int
	Actual   int
	Row      int
}

// Error returns the error string.
func (e *ColumnMismatchError) Error() string {
	return fmt.Sprintf("strata: %s row %d has %d columns, expected %d", e.Entity, e.Row, e.Actual, e.Expected)
}

// Is reports whether the target error is ErrColumnMismatch.
func (e *ColumnMismatchError) Is(err error) bool {
	return err == ErrColumnMismatch
}

// IsColumnMismatch returns true if the error is a ColumnMismatchError.
func IsColumnMismatch(err error) bool {
	var e *ColumnMismatchError
	return errors.As(err, &e)
}

// UnknownMemberError is returned when a member name does not resolve to a
// physical column of the entity.
type UnknownMemberError struct {
	Entity string
	Member string
}

// Error returns the error string.
func (e *UnknownMemberError) Error() string {
	return fmt.Sprintf("strata: %s has no column for member %q", e.Entity, e.Member)
}

// Is reports whether the target error is ErrUnknownMember.
func (e *UnknownMemberError) Is(err error) bool {
	return err == ErrUnknownMember
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("strata: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// ValidationError represents an invalid entity definition, such as a grouped
// array whose members disagree on their element count.
type ValidationError struct {
	Name string // Entity or member name
	Err  error  // Underlying validation error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("strata: invalid definition %q: %s", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a new ValidationError for the given name.
func NewValidationError(name string, err error) *ValidationError {
	return &ValidationError{Name: name, Err: err}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// QueryError wraps a query error with additional context.
type QueryError struct {
	Entity string // Entity type being queried
	Op     string // Operation (e.g., "select", "count")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("strata: querying %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("strata: querying %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(entity, op string, err error) *QueryError {
	return &QueryError{Entity: entity, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// MutationError wraps a mutation error with additional context.
type MutationError struct {
	Entity string // Entity type being mutated
	Op     string // Operation (e.g., "insert", "update", "delete")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("strata: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(entity, op string, err error) *MutationError {
	return &MutationError{Entity: entity, Op: op, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}

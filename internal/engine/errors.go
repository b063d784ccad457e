package engine

// The error kinds a state machine can raise. The HTTP boundary maps each
// 1:1 onto a status code; anything else is treated as an internal failure.

// ValidationError marks malformed or missing input.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// NotFoundError marks a referenced entity that does not exist.
type NotFoundError struct {
	Msg string
}

func (e NotFoundError) Error() string { return e.Msg }

// PermissionError marks an authenticated caller acting on an entity that is
// not theirs.
type PermissionError struct {
	Msg string
}

func (e PermissionError) Error() string { return e.Msg }

// ConflictError marks a valid request the current state forbids.
type ConflictError struct {
	Msg string
}

func (e ConflictError) Error() string { return e.Msg }

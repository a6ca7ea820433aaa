package auth

import "fmt"

// ForbiddenError means the actor lacks authority for the requested operation.
// It is never retried; the boundary maps it to a 403.
type ForbiddenError struct {
	ActorID string
	Action  string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("actor %s not permitted to %s", e.ActorID, e.Action)
}

// PreconditionError means the entity's current state rejects the operation,
// e.g. completing an assignment with incomplete required tasks. The boundary
// maps it to a 422.
type PreconditionError struct {
	Reason string
}

func (e PreconditionError) Error() string { return e.Reason }

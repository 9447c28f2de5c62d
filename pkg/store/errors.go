package store

import "fmt"

// RelationshipError reports a required relationship that was omitted when
// creating a record. It signals misuse of the Store in test setup and is
// returned synchronously instead of surfacing through any HTTP response.
type RelationshipError struct {
	Entity       string
	Relationship string
}

func (e *RelationshipError) Error() string {
	return fmt.Sprintf("missing `%s` relationship on `%s`", e.Relationship, e.Entity)
}

// OwnershipConflictError reports a crate ownership that names both a user
// and a team, or neither.
type OwnershipConflictError struct {
	Both bool
}

func (e *OwnershipConflictError) Error() string {
	if e.Both {
		return "`team` and `user` on a `crate-ownership` are mutually exclusive"
	}
	return "missing `team` or `user` relationship on `crate-ownership`"
}

func missingRelationship(entity, relationship string) error {
	return &RelationshipError{Entity: entity, Relationship: relationship}
}

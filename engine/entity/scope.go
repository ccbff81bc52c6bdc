package entity

import "fmt"

// Scope determines how entities of a type are addressed and whether they are persisted
type Scope int

const (
	// ScopeSingle is one entity per owner
	ScopeSingle Scope = iota + 1
	// ScopeShared is one process-wide entity, never persisted
	ScopeShared
	// ScopeMulti is many entities per owner, each under its own instance key
	ScopeMulti
)

// SharedOwner is the owner of all Shared entity keys
const SharedOwner = "$shared"

func (s Scope) String() string {
	switch s {
	case ScopeSingle:
		return "Single"
	case ScopeShared:
		return "Shared"
	case ScopeMulti:
		return "Multi"
	}
	return fmt.Sprintf("Scope(%d)", int(s))
}

// IsPersistent returns if entities of this scope are written to the durable store
func (s Scope) IsPersistent() bool {
	return s == ScopeSingle || s == ScopeMulti
}

// IsValid returns if the scope is one of the defined scopes
func (s Scope) IsValid() bool {
	return s == ScopeSingle || s == ScopeShared || s == ScopeMulti
}

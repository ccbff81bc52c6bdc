package entity

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownType is returned for operations on types that were never registered
	ErrUnknownType = errors.New("unknown entity type")
	// ErrInvalidKey is returned when owner or instance do not match the scope of the type
	ErrInvalidKey = errors.New("invalid entity key")
)

// LoadFailure is returned when the loader of an entity fails, the entity is not created
type LoadFailure struct {
	Key Key
	Err error
}

func (lf *LoadFailure) Error() string {
	return fmt.Sprintf("load %s failed: %v", lf.Key, lf.Err)
}

// Cause returns the loader error
func (lf *LoadFailure) Cause() error {
	return lf.Err
}

// Unwrap returns the loader error
func (lf *LoadFailure) Unwrap() error {
	return lf.Err
}

// IsLoadFailure returns if err is or wraps a LoadFailure
func IsLoadFailure(err error) bool {
	var lf *LoadFailure
	return errors.As(err, &lf)
}

package compare

import (
	"errors"
	"fmt"

	"github.com/jamesainslie/fsverify/pkg/fsverify/record"
)

// ErrMismatch matches every *MismatchError.
var ErrMismatch = errors.New("attribute mismatch")

// MismatchError carries the symmetric difference of one failed attribute check.
type MismatchError struct {
	Attribute    record.Attribute
	OnlyForensic []Pair
	OnlyOS       []Pair
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s mismatch: forensic only %s, os only %s",
		e.Attribute, formatPairs(e.OnlyForensic), formatPairs(e.OnlyOS))
}

// Is matches ErrMismatch.
func (e *MismatchError) Is(target error) bool { return target == ErrMismatch }

package interview

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the interview row does not exist.
var ErrNotFound = errors.New("interview not found")

// ErrImmutableState is returned when metadata edits are attempted after the
// interview has left PENDING.
var ErrImmutableState = errors.New("interview is no longer editable")

// InvalidTransitionError reports a state machine violation along with the
// state the row was actually in, so clients can show something useful.
type InvalidTransitionError struct {
	Current   string
	Attempted string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an interview in state %s", e.Attempted, e.Current)
}

// AsInvalidTransition unwraps err into an InvalidTransitionError, if it is one.
func AsInvalidTransition(err error) (*InvalidTransitionError, bool) {
	var ite *InvalidTransitionError
	if errors.As(err, &ite) {
		return ite, true
	}
	return nil, false
}

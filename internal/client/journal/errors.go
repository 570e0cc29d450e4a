package journal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iudanet/dreamjournal/internal/client/api"
	"github.com/iudanet/dreamjournal/internal/validation"
)

// ErrNotSignedIn is the write gate refusal. It always comes wrapped together
// with api.ErrPermissionDenied.
var ErrNotSignedIn = errors.New("not signed in")

// Op names a synchronizer operation
type Op string

const (
	OpRefresh       Op = "refresh"
	OpSubmitEntry   Op = "submit entry"
	OpDeleteEntry   Op = "delete entry"
	OpSubmitComment Op = "submit comment"
	OpDeleteComment Op = "delete comment"
)

var opMessages = map[Op]string{
	OpRefresh:       "Could not load the journal.",
	OpSubmitEntry:   "Could not save the entry.",
	OpDeleteEntry:   "Could not delete the entry.",
	OpSubmitComment: "Could not add the comment.",
	OpDeleteComment: "Could not delete the comment.",
}

// OpError is the failure of one synchronizer operation
type OpError struct {
	Err error
	Op  Op
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Message returns the text shown to the user. Only a failed presence check
// gets a specific message; everything else names the operation.
func (e *OpError) Message() string {
	if errors.Is(e.Err, api.ErrValidationFailed) {
		if fields := validation.MissingFields(e.Err); len(fields) > 0 {
			return "Please fill in the " + strings.Join(fields, " and ") + "."
		}
	}
	if msg, ok := opMessages[e.Op]; ok {
		return msg
	}
	return "Something went wrong."
}

// Message extracts the user-facing text of any error returned by the
// synchronizer
func Message(err error) string {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Message()
	}
	return err.Error()
}

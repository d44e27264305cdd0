package workflow

import (
	"errors"
	"strings"
)

// ErrPermissionDenied is returned when the acting user's role does not
// authorize the attempted transition. The HTTP middleware gates routes by
// role too, but the engine re-checks so non-UI callers hit the same wall.
var ErrPermissionDenied = errors.New("permission denied for this action")

// ErrNoEditableStage is returned when no stage-completion branch applies to
// the acting user and the entry's current status (e.g. an HOD saving a
// terminal entry that was never reopened).
var ErrNoEditableStage = errors.New("entry has no editable stage in its current status")

// ValidationError reports the required inputs missing or invalid at a
// stage-completion attempt. The entry is left untouched when it is returned.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing or invalid fields: " + strings.Join(e.Fields, ", ")
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

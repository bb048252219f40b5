package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
)

// userSafe lists errors whose message may be shown to API clients verbatim.
var userSafe = []error{ErrNotFound, ErrIdempotencyConflict}

// UserSafeMessage returns a client-facing message for err, hiding internals.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, safe := range userSafe {
		if errors.Is(err, safe) {
			return err.Error()
		}
	}
	return "internal error"
}

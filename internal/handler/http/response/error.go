package response

import (
	"errors"
	"net/http"

	"github.com/noaione/klibrarian/internal/domain/invite"
	"github.com/noaione/klibrarian/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		BadRequest(w, "Invalid request: "+validationErrs.Error())
		return
	}

	var incompleteToken *invite.IncompleteTokenError
	var wrongKind *invite.WrongInviteKindError
	var unavailable *invite.ClientUnavailableError

	switch {
	case errors.Is(err, invite.ErrInviteNotFound):
		NotFound(w, "Invite token not found")
	case errors.Is(err, invite.ErrInviteExpired):
		Forbidden(w, "Invite token expired")
	case errors.Is(err, invite.ErrTokenInvalidFormat),
		errors.Is(err, invite.ErrTokenInvalidValue):
		BadRequest(w, err.Error())
	case errors.As(err, &incompleteToken):
		BadRequest(w, err.Error())
	case errors.As(err, &wrongKind):
		BadRequest(w, err.Error())
	case errors.As(err, &unavailable):
		ServiceUnavailable(w, err.Error())

	// Store failures, corrupt payloads, and remote-client errors are
	// surfaced verbatim; nothing is silently swallowed.
	default:
		InternalServerError(w, err.Error())
	}
}

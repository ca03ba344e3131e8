package invite

import (
	"errors"
	"fmt"
)

var (
	ErrInviteNotFound = errors.New("invite token not found")
	ErrInviteExpired  = errors.New("invite token expired")

	ErrTokenInvalidFormat = errors.New("invalid invite token format")
	ErrTokenInvalidValue  = errors.New("invalid invite token value")
)

// IncompleteTokenError reports a prefixed token with fewer than 32 hex
// digits. Part identifies which of the five canonical groups was truncated.
type IncompleteTokenError struct {
	Part int
}

func (e *IncompleteTokenError) Error() string {
	return fmt.Sprintf("incomplete invite token, missing data for group %d", e.Part)
}

// WrongInviteKindError reports a redemption attempted against the wrong
// platform path.
type WrongInviteKindError struct {
	Actual   Kind
	Expected Kind
}

func (e *WrongInviteKindError) Error() string {
	return fmt.Sprintf("wrong invite kind for user creation: %s, expected %s", e.Actual, e.Expected)
}

// ClientUnavailableError reports that the invite's platform is not configured
// on this deployment.
type ClientUnavailableError struct {
	Platform string
}

func (e *ClientUnavailableError) Error() string {
	return fmt.Sprintf("client %s is unavailable for user creation", e.Platform)
}

// UnknownKindError reports a stored row whose discriminant matches no known
// platform.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown token kind: %s", e.Kind)
}

// CorruptPayloadError reports a stored options payload that does not parse
// against the schema implied by its discriminant.
type CorruptPayloadError struct {
	Kind Kind
	Err  error
}

func (e *CorruptPayloadError) Error() string {
	return fmt.Sprintf("corrupt %s invite payload: %v", e.Kind, e.Err)
}

func (e *CorruptPayloadError) Unwrap() error {
	return e.Err
}

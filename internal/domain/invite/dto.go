package invite

import (
	"encoding/json"

	"github.com/noaione/klibrarian/internal/pkg/validator"
)

// CreateRequest is the payload for creating an invite. The JSON form is
// internally tagged: {"kind": "komga", ...option fields...}.
type CreateRequest struct {
	Kind      Kind
	Komga     *KomgaOption
	Navidrome *NavidromeOption
}

func (r *CreateRequest) UnmarshalJSON(data []byte) error {
	var tag struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}

	switch Kind(tag.Kind) {
	case KindKomga:
		var option KomgaOption
		if err := json.Unmarshal(data, &option); err != nil {
			return err
		}
		*r = CreateRequest{Kind: KindKomga, Komga: &option}
	case KindNavidrome:
		var option NavidromeOption
		if err := json.Unmarshal(data, &option); err != nil {
			return err
		}
		*r = CreateRequest{Kind: KindNavidrome, Navidrome: &option}
	default:
		return &UnknownKindError{Kind: tag.Kind}
	}
	return nil
}

// ApplyRequest carries the credentials a redeemer supplies for the new
// remote account. Username is ignored by Komga.
type ApplyRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

const minPasswordLength = 6

// Validate checks the credentials against the owning platform kind. Every
// violation is collected so the caller can display all of them at once.
func (r ApplyRequest) Validate(kind Kind) error {
	var errs validator.ValidationErrors

	if !validator.IsValidEmail(r.Email) {
		errs = append(errs, validator.ValidationError{
			Field:   "email",
			Message: "must be a valid email address",
		})
	}

	if len(r.Password) < minPasswordLength {
		errs = append(errs, validator.ValidationError{
			Field:   "password",
			Message: "must be at least 6 characters long",
		})
	}

	if kind == KindNavidrome {
		if validator.IsEmpty(r.Username) {
			errs = append(errs, validator.ValidationError{
				Field:   "username",
				Message: "cannot be empty",
			})
		} else if !validator.IsValidUsername(r.Username) {
			errs = append(errs, validator.ValidationError{
				Field:   "username",
				Message: "can only contain alphanumeric characters, dashes, and underscores",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

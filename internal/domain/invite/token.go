package invite

import (
	"strings"

	"github.com/google/uuid"
)

// TokenPrefix is prepended to the compact textual form handed out to clients.
const TokenPrefix = "kli_"

// tokenGroups are the hex-digit widths of the canonical 8-4-4-4-12 grouping.
var tokenGroups = [5]int{8, 4, 4, 4, 12}

// TokenID identifies a single invite. It wraps a random 128-bit value; two
// TokenIDs are equal when the underlying values are equal, regardless of
// which textual form they were parsed from.
type TokenID struct {
	value uuid.UUID
}

// GenerateToken mints a new cryptographically random token.
func GenerateToken() TokenID {
	return TokenID{value: uuid.New()}
}

// ParseToken accepts either the prefixed compact form ("kli_" followed by 32
// contiguous hex digits) or the canonical hyphenated form.
func ParseToken(text string) (TokenID, error) {
	compact, ok := strings.CutPrefix(text, TokenPrefix)
	if !ok {
		// Without the prefix only the canonical hyphenated form is valid;
		// uuid.Parse alone would also accept bare 32-digit hex.
		if len(text) != 36 {
			return TokenID{}, ErrTokenInvalidFormat
		}
		value, err := uuid.Parse(text)
		if err != nil {
			return TokenID{}, ErrTokenInvalidFormat
		}
		return TokenID{value: value}, nil
	}

	// Rebuild the canonical grouping so uuid.Parse can validate the value.
	var groups []string
	rest := compact
	for i, width := range tokenGroups {
		if len(rest) < width {
			return TokenID{}, &IncompleteTokenError{Part: i}
		}
		groups = append(groups, rest[:width])
		rest = rest[width:]
	}
	if rest != "" {
		return TokenID{}, ErrTokenInvalidValue
	}

	value, err := uuid.Parse(strings.Join(groups, "-"))
	if err != nil {
		return TokenID{}, ErrTokenInvalidValue
	}
	return TokenID{value: value}, nil
}

// String returns the prefixed compact form. This is the representation used
// in API responses and as the store's primary key.
func (t TokenID) String() string {
	return TokenPrefix + strings.ReplaceAll(t.value.String(), "-", "")
}

// Canonical returns the hyphenated form used by older database rows.
func (t TokenID) Canonical() string {
	return t.value.String()
}

// IsZero reports whether the token holds no value.
func (t TokenID) IsZero() bool {
	return t.value == uuid.Nil
}

// MarshalJSON emits the prefixed compact form.
func (t TokenID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON accepts either textual form.
func (t *TokenID) UnmarshalJSON(data []byte) error {
	text := strings.Trim(string(data), `"`)
	parsed, err := ParseToken(text)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

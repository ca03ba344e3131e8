package invite

import (
	"encoding/json"
	"time"
)

// Kind discriminates the two invite variants.
type Kind string

const (
	KindKomga     Kind = "komga"
	KindNavidrome Kind = "navidrome"
)

// SharedLibraries scopes a Komga account to a library subset.
type SharedLibraries struct {
	All        bool     `json:"all"`
	LibraryIDs []string `json:"libraryIds"`
}

// KomgaOption carries the grant parameters of a Komga invite. Field names
// match the payload stored in the invites table.
type KomgaOption struct {
	LabelsAllow     []string         `json:"labelsAllow"`
	LabelsExclude   []string         `json:"labelsExclude"`
	SharedLibraries *SharedLibraries `json:"sharedLibraries"`
	ExpiresAt       *int64           `json:"expiresAt"`
	Roles           []string         `json:"roles"`
}

// NavidromeOption carries the grant parameters of a Navidrome invite.
type NavidromeOption struct {
	IsAdmin    bool     `json:"isAdmin"`
	ExpiresAt  *int64   `json:"expiresAt"`
	LibraryIDs []uint64 `json:"libraryIds"`
}

// Invite is a pending invitation. Exactly one of Komga or Navidrome is set,
// matching Kind. RemoteUserID stays nil until the remote account-creation
// call has succeeded at least once; a set value means the account exists
// remotely and restrictions may still need (re)applying.
type Invite struct {
	Token        TokenID
	Kind         Kind
	Komga        *KomgaOption
	Navidrome    *NavidromeOption
	RemoteUserID *string
	CreatedAt    time.Time
}

// NewKomgaInvite mints a token for a Komga invite.
func NewKomgaInvite(option KomgaOption) Invite {
	return Invite{Token: GenerateToken(), Kind: KindKomga, Komga: &option}
}

// NewNavidromeInvite mints a token for a Navidrome invite.
func NewNavidromeInvite(option NavidromeOption) Invite {
	return Invite{Token: GenerateToken(), Kind: KindNavidrome, Navidrome: &option}
}

// ExpiresAt returns the variant's optional expiry in epoch seconds.
func (i *Invite) ExpiresAt() *int64 {
	switch i.Kind {
	case KindKomga:
		return i.Komga.ExpiresAt
	case KindNavidrome:
		return i.Navidrome.ExpiresAt
	}
	return nil
}

// IsExpired reports whether the invite's expiry, if any, has passed. Expiry
// is evaluated lazily at read time; there is no background sweep.
func (i *Invite) IsExpired(now time.Time) bool {
	expiresAt := i.ExpiresAt()
	return expiresAt != nil && now.Unix() > *expiresAt
}

// OptionJSON serializes the variant's options payload for storage.
func (i *Invite) OptionJSON() ([]byte, error) {
	switch i.Kind {
	case KindKomga:
		return json.Marshal(i.Komga)
	case KindNavidrome:
		return json.Marshal(i.Navidrome)
	}
	return nil, &UnknownKindError{Kind: string(i.Kind)}
}

// DecodeInvite reconstructs an invite from its stored row parts.
func DecodeInvite(token TokenID, kind string, optionJSON []byte, remoteUserID *string, createdAt time.Time) (Invite, error) {
	inv := Invite{
		Token:        token,
		RemoteUserID: remoteUserID,
		CreatedAt:    createdAt,
	}

	switch Kind(kind) {
	case KindKomga:
		var option KomgaOption
		if err := json.Unmarshal(optionJSON, &option); err != nil {
			return Invite{}, &CorruptPayloadError{Kind: KindKomga, Err: err}
		}
		inv.Kind = KindKomga
		inv.Komga = &option
	case KindNavidrome:
		var option NavidromeOption
		if err := json.Unmarshal(optionJSON, &option); err != nil {
			return Invite{}, &CorruptPayloadError{Kind: KindNavidrome, Err: err}
		}
		inv.Kind = KindNavidrome
		inv.Navidrome = &option
	default:
		return Invite{}, &UnknownKindError{Kind: kind}
	}

	return inv, nil
}

type inviteJSON struct {
	Kind   Kind            `json:"kind"`
	Token  TokenID         `json:"token"`
	Option json.RawMessage `json:"option"`
	UUID   *string         `json:"uuid"`
}

// MarshalJSON emits the wire shape exchanged with callers:
// {"kind": ..., "token": "<prefixed form>", "option": {...}, "uuid": ...}.
func (i Invite) MarshalJSON() ([]byte, error) {
	option, err := i.OptionJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(inviteJSON{
		Kind:   i.Kind,
		Token:  i.Token,
		Option: option,
		UUID:   i.RemoteUserID,
	})
}

// UnmarshalJSON accepts the same wire shape.
func (i *Invite) UnmarshalJSON(data []byte) error {
	var raw inviteJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := DecodeInvite(raw.Token, string(raw.Kind), raw.Option, raw.UUID, time.Time{})
	if err != nil {
		return err
	}
	*i = decoded
	return nil
}

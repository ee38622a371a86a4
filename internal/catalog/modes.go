package catalog

import "fmt"

// MembershipMode selects how set membership is written.
type MembershipMode string

const (
	// MembershipImperative issues add/remove calls for the computed diff.
	MembershipImperative MembershipMode = "imperative"
	// MembershipDeclarative sends a filter naming exactly the desired IDs.
	MembershipDeclarative MembershipMode = "declarative"
)

// SetMembersMode selects how set membership is read.
type SetMembersMode string

const (
	// SetMembersEmbedded reads members from the set's own filter.
	SetMembersEmbedded SetMembersMode = "embedded"
	// SetMembersFetched issues one batched member read per set.
	SetMembersFetched SetMembersMode = "fetched"
)

// StatusMode selects how moderation status is refreshed.
type StatusMode string

const (
	StatusBatched    StatusMode = "batched"
	StatusConcurrent StatusMode = "concurrent"
)

// Modes is the provider protocol variant, fixed when a Client is built.
type Modes struct {
	Membership MembershipMode
	SetMembers SetMembersMode
	Status     StatusMode
}

// DefaultModes matches the provider's current API.
func DefaultModes() Modes {
	return Modes{
		Membership: MembershipDeclarative,
		SetMembers: SetMembersFetched,
		Status:     StatusBatched,
	}
}

// ParseModes validates textual mode names, typically from configuration.
func ParseModes(membership, members, status string) (Modes, error) {
	m := Modes{
		Membership: MembershipMode(membership),
		SetMembers: SetMembersMode(members),
		Status:     StatusMode(status),
	}
	return m, m.validate()
}

func (m Modes) validate() error {
	switch m.Membership {
	case MembershipImperative, MembershipDeclarative:
	default:
		return fmt.Errorf("unknown membership mode %q", m.Membership)
	}
	switch m.SetMembers {
	case SetMembersEmbedded, SetMembersFetched:
	default:
		return fmt.Errorf("unknown set members mode %q", m.SetMembers)
	}
	switch m.Status {
	case StatusBatched, StatusConcurrent:
	default:
		return fmt.Errorf("unknown status mode %q", m.Status)
	}
	return nil
}

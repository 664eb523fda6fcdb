package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// MembershipStatus mirrors the chat platform's member states.
type MembershipStatus string

const (
	MembershipCreator       MembershipStatus = "creator"
	MembershipAdministrator MembershipStatus = "administrator"
	MembershipMember        MembershipStatus = "member"
	MembershipRestricted    MembershipStatus = "restricted"
	MembershipLeft          MembershipStatus = "left"
	MembershipKicked        MembershipStatus = "kicked"
)

// IsPresent reports whether the subject currently sits in the chat.
func (s MembershipStatus) IsPresent() bool {
	switch s {
	case MembershipCreator, MembershipAdministrator, MembershipMember, MembershipRestricted:
		return true
	}
	return false
}

// IsPrivileged reports owners and admins, which enforcement never touches.
func (s MembershipStatus) IsPrivileged() bool {
	return s == MembershipCreator || s == MembershipAdministrator
}

// ChatPlatform is the membership capability the access loop drives.
// IDs are the platform identities rendered as strings. Implementations
// wrap failures in domain.ErrMembershipAPI; retries are their own concern.
type ChatPlatform interface {
	ApproveJoinRequest(ctx context.Context, groupID, subjectID string) error
	DeclineJoinRequest(ctx context.Context, groupID, subjectID string) error
	BanMember(ctx context.Context, groupID, subjectID string) error
	UnbanMember(ctx context.Context, groupID, subjectID string) error
	SendDirectMessage(ctx context.Context, subjectID, text string) error
	GetMembershipStatus(ctx context.Context, groupID, subjectID string) (MembershipStatus, error)
}

// Messenger is the narrower surface conversational flows need.
type Messenger interface {
	SendDirectMessage(ctx context.Context, subjectID, text string) error
	SendButtons(ctx context.Context, subjectID, text string, rows [][]InlineButton) error
}

/*
Package user contains the core data structures for platform identities.

It defines the User struct shared by the messaging, profile, and directory
surfaces, and the Role enumeration separating students from counsellors.
*/
package user

// Role identifies which side of the counseling relationship a user is on.
// A role is chosen exactly once during onboarding; an empty Role means
// onboarding has not completed yet.
type Role string

const (
	RoleStudent    Role = "student"
	RoleCounsellor Role = "counsellor"
)

// Valid reports whether the role is one of the two platform roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleCounsellor
}

// Counterpart returns the opposite role. Students converse with counsellors
// and vice versa; the directory listing uses this to decide who is shown.
func (r Role) Counterpart() Role {
	if r == RoleStudent {
		return RoleCounsellor
	}
	return RoleStudent
}

// User represents a platform member's display identity.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Email is the account email address.
	Email string `json:"email"`

	// Role is the platform role, empty until onboarding completes.
	Role Role `json:"role,omitempty"`

	// AvatarURL points at the user's avatar image.
	AvatarURL string `json:"avatarUrl,omitempty"`
}

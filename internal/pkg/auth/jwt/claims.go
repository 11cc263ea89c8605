package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims carried by a MindEase session token.
// Tokens are issued by the external auth service; this server only parses
// them to establish the caller's identity and role.
type Payload struct {
	// StandardClaims embeds the standard JWT fields (Exp, Iat, Iss) used for
	// validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the authenticated user's identifier.
	UserID string `json:"user_id"`

	// Role is the user's platform role ("student", "counsellor", or empty
	// before onboarding completes).
	Role string `json:"role"`
}
